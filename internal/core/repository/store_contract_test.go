package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/session-auth/internal/core/domain"
)

// runSessionStoreContract checks the behaviour every domain.SessionStore
// must share. The store must start empty.
func runSessionStoreContract(t *testing.T, store domain.SessionStore) {
	t.Helper()
	ctx := t.Context()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty list is not nil", func(t *testing.T) {
		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, sessions)
		assert.Empty(t, sessions)
	})

	t.Run("get missing returns nil", func(t *testing.T) {
		got, err := store.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, domain.Session{UserID: "u1", Email: "a@x.io", Name: "A", LoginTime: base}))
		require.NoError(t, store.Set(ctx, domain.Session{UserID: "u1", Email: "a@x.io", Name: "A2", LoginTime: base.Add(time.Hour)}))

		got, err := store.Get(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "A2", got.Name)
		assert.True(t, got.LoginTime.Equal(base.Add(time.Hour)))

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, sessions, 1)
	})

	t.Run("list orders by login time", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, domain.Session{UserID: "u2", Email: "b@x.io", Name: "B", LoginTime: base.Add(-time.Hour)}))
		require.NoError(t, store.Set(ctx, domain.Session{UserID: "u3", Email: "c@x.io", Name: "C", LoginTime: base.Add(2 * time.Hour)}))

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 3)
		assert.Equal(t, []string{"u2", "u1", "u3"}, []string{sessions[0].UserID, sessions[1].UserID, sessions[2].UserID})
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "u2"))
		require.NoError(t, store.Delete(ctx, "u2"))
		require.NoError(t, store.Delete(ctx, "never-existed"))

		got, err := store.Get(ctx, "u2")
		require.NoError(t, err)
		assert.Nil(t, got)

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, sessions, 2)
	})
}

// runUserRepositoryContract checks the behaviour every domain.UserRepository
// must share. The repository must start empty with its unique email
// constraint in place.
func runUserRepositoryContract(t *testing.T, repo domain.UserRepository, unknownID string) {
	t.Helper()
	ctx := t.Context()

	var id string
	t.Run("create and look up", func(t *testing.T) {
		var err error
		id, err = repo.Create(ctx, "Alice", "alice@example.com", "hash-1")
		require.NoError(t, err)
		require.NotEmpty(t, id)

		byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, id, byEmail.ID)
		assert.Equal(t, "Alice", byEmail.Name)
		assert.Equal(t, "hash-1", byEmail.PasswordHash)
		assert.False(t, byEmail.CreatedAt.IsZero())

		byID, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "alice@example.com", byID.Email)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := repo.Create(ctx, "Other", "alice@example.com", "hash-2")
		require.ErrorIs(t, err, domain.ErrDuplicateEmail)

		got, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Alice", got.Name)
	})

	t.Run("email is case sensitive", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unknown returns nil", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.GetByID(ctx, unknownID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
