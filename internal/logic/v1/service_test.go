package v1

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/duynhne/session-auth/internal/core/domain"
	"github.com/duynhne/session-auth/internal/core/repository"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc      *AuthService
	users    *repository.MemoryUserRepository
	sessions *repository.MemorySessionStore
	tokens   *TokenIssuer
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := NewTokenIssuer("test-secret", DefaultTokenTTL)
	require.NoError(t, err)

	users := repository.NewMemoryUserRepository()
	sessions := repository.NewMemorySessionStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewAuthService(users, sessions, tokens,
		WithClock(clock.Now),
		WithPasswordCost(bcrypt.MinCost),
	)
	return &fixture{svc: svc, users: users, sessions: sessions, tokens: tokens, clock: clock}
}

func (f *fixture) register(t *testing.T, name, email, password string) *domain.AuthResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), domain.RegisterRequest{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return resp
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success creates user and session", func(t *testing.T) {
		f := newFixture(t)

		resp := f.register(t, "A", "a@x.com", "secret1")
		assert.NotEmpty(t, resp.Token)
		assert.NotEmpty(t, resp.User.ID)
		assert.Equal(t, "A", resp.User.Name)
		assert.Equal(t, "a@x.com", resp.User.Email)

		row, err := f.users.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.NotEqual(t, "secret1", row.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte("secret1")))

		session, err := f.sessions.Get(ctx, resp.User.ID)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, f.clock.Now(), session.LoginTime)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		for _, req := range []domain.RegisterRequest{
			{Email: "a@x.com", Password: "secret1"},
			{Name: "A", Password: "secret1"},
			{Name: "A", Email: "a@x.com"},
		} {
			_, err := f.svc.Register(ctx, req)
			require.ErrorIs(t, err, ErrValidation)
		}
		assert.Equal(t, 0, f.sessions.Len())
	})

	t.Run("password length boundary", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Register(ctx, domain.RegisterRequest{Name: "A", Email: "a@x.com", Password: "abcde"})
		require.ErrorIs(t, err, ErrValidation)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "Password must be at least 6 characters", vErr.Message)

		_, err = f.svc.Register(ctx, domain.RegisterRequest{Name: "A", Email: "a@x.com", Password: "abcdef"})
		require.NoError(t, err)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "A", "a@x.com", "secret1")

		_, err := f.svc.Register(ctx, domain.RegisterRequest{Name: "B", Email: "a@x.com", Password: "secret2"})
		require.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("email comparison is case sensitive", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "A", "a@x.com", "secret1")
		f.register(t, "A", "A@x.com", "secret1")
	})

	t.Run("store unique constraint maps to conflict", func(t *testing.T) {
		f := newFixture(t)
		users := &racingUsers{MemoryUserRepository: f.users}
		svc := NewAuthService(users, f.sessions, f.tokens, WithPasswordCost(bcrypt.MinCost))

		_, err := svc.Register(ctx, domain.RegisterRequest{Name: "A", Email: "a@x.com", Password: "secret1"})
		require.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		f := newFixture(t)
		svc := NewAuthService(&failingUsers{}, f.sessions, f.tokens)

		_, err := svc.Register(ctx, domain.RegisterRequest{Name: "A", Email: "a@x.com", Password: "secret1"})
		require.ErrorIs(t, err, errBoom)
		assert.False(t, errors.Is(err, ErrValidation))
		assert.False(t, errors.Is(err, ErrUserExists))
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		reg := f.register(t, "A", "a@x.com", "secret1")

		resp, err := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, reg.User.ID, resp.User.ID)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com"})
		require.ErrorIs(t, err, ErrValidation)
		_, err = f.svc.Login(ctx, domain.LoginRequest{Password: "secret1"})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "A", "a@x.com", "secret1")

		_, wrongPassword := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "nope123"})
		_, unknownEmail := f.svc.Login(ctx, domain.LoginRequest{Email: "b@x.com", Password: "secret1"})

		require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
		require.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
		assert.False(t, errors.Is(wrongPassword, ErrUserNotFound))
		assert.False(t, errors.Is(unknownEmail, ErrUserNotFound))
	})

	t.Run("repeated login keeps one session with latest timestamp", func(t *testing.T) {
		f := newFixture(t)
		reg := f.register(t, "A", "a@x.com", "secret1")

		f.clock.Advance(time.Minute)
		first, err := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "secret1"})
		require.NoError(t, err)

		f.clock.Advance(time.Minute)
		second, err := f.svc.Login(ctx, domain.LoginRequest{Email: "a@x.com", Password: "secret1"})
		require.NoError(t, err)
		secondLogin := f.clock.Now()

		assert.Equal(t, 1, f.sessions.Len())

		check := f.svc.CheckSession(ctx, second.Token)
		require.True(t, check.Valid)
		assert.Equal(t, secondLogin, check.Session.LoginTime)

		// Earlier tokens of the same user share the single session entry.
		check = f.svc.CheckSession(ctx, first.Token)
		require.True(t, check.Valid)
		assert.Equal(t, secondLogin, check.Session.LoginTime)
		assert.Equal(t, reg.User.ID, check.User.ID)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("removes session", func(t *testing.T) {
		f := newFixture(t)
		resp := f.register(t, "A", "a@x.com", "secret1")

		require.NoError(t, f.svc.Logout(ctx, resp.Token))

		check := f.svc.CheckSession(ctx, resp.Token)
		assert.False(t, check.Valid)
		assert.Equal(t, "Session expired", check.Message)
	})

	t.Run("is idempotent", func(t *testing.T) {
		f := newFixture(t)
		resp := f.register(t, "A", "a@x.com", "secret1")

		require.NoError(t, f.svc.Logout(ctx, resp.Token))
		require.NoError(t, f.svc.Logout(ctx, resp.Token))
	})

	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.svc.Logout(ctx, ""), ErrValidation)
	})

	t.Run("invalid token", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.svc.Logout(ctx, "garbage"), ErrInvalidToken)
	})

	t.Run("only removes the token owner's session", func(t *testing.T) {
		f := newFixture(t)
		a := f.register(t, "A", "a@x.com", "secret1")
		b := f.register(t, "B", "b@x.com", "secret1")

		require.NoError(t, f.svc.Logout(ctx, a.Token))
		assert.False(t, f.svc.CheckSession(ctx, a.Token).Valid)
		assert.True(t, f.svc.CheckSession(ctx, b.Token).Valid)
	})
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		resp := f.register(t, "A", "a@x.com", "secret1")
		f.clock.Advance(90 * time.Second)

		profile, err := f.svc.GetProfile(ctx, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, profile.User.ID)
		assert.Equal(t, "A", profile.User.Name)
		assert.Equal(t, "a@x.com", profile.User.Email)
		assert.NotNil(t, profile.User.CreatedAt)
		assert.Equal(t, 90*time.Second, profile.Session.Duration)
	})

	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.GetProfile(ctx, "")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("forged token", func(t *testing.T) {
		f := newFixture(t)
		resp := f.register(t, "A", "a@x.com", "secret1")

		forger, err := NewTokenIssuer("attacker-secret", time.Hour)
		require.NoError(t, err)
		forged, _, err := forger.Mint(resp.User.ID)
		require.NoError(t, err)

		profile, err := f.svc.GetProfile(ctx, forged)
		require.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, profile)
	})

	t.Run("valid token without session", func(t *testing.T) {
		f := newFixture(t)
		resp := f.register(t, "A", "a@x.com", "secret1")
		require.NoError(t, f.sessions.Delete(ctx, resp.User.ID))

		_, err := f.svc.GetProfile(ctx, resp.Token)
		require.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("session whose user is gone", func(t *testing.T) {
		f := newFixture(t)
		token, _, err := f.tokens.Mint("ghost")
		require.NoError(t, err)
		require.NoError(t, f.sessions.Set(ctx, domain.Session{UserID: "ghost", LoginTime: f.clock.Now()}))

		_, err = f.svc.GetProfile(ctx, token)
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestCheckSession(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		f := newFixture(t)
		resp := f.register(t, "A", "a@x.com", "secret1")
		f.clock.Advance(5 * time.Second)

		check := f.svc.CheckSession(ctx, resp.Token)
		require.True(t, check.Valid)
		assert.Equal(t, "a@x.com", check.User.Email)
		assert.Equal(t, "A", check.User.Name)
		assert.Nil(t, check.User.CreatedAt)
		assert.Equal(t, 5*time.Second, check.Session.Duration)
	})

	t.Run("uses session cache, not the store", func(t *testing.T) {
		f := newFixture(t)
		resp := f.register(t, "A", "a@x.com", "secret1")
		svc := NewAuthService(&failingUsers{}, f.sessions, f.tokens, WithClock(f.clock.Now))

		check := svc.CheckSession(ctx, resp.Token)
		assert.True(t, check.Valid)
	})

	t.Run("invalid cases", func(t *testing.T) {
		f := newFixture(t)
		orphan, _, err := f.tokens.Mint("nobody")
		require.NoError(t, err)

		tests := []struct {
			token   string
			message string
		}{
			{"", "No token"},
			{"garbage", "Invalid token"},
			{orphan, "Session expired"},
		}
		for _, tt := range tests {
			check := f.svc.CheckSession(ctx, tt.token)
			assert.False(t, check.Valid)
			assert.Equal(t, tt.message, check.Message)
			assert.Nil(t, check.User)
			assert.Nil(t, check.Session)
		}
	})

	t.Run("store failure still answers", func(t *testing.T) {
		f := newFixture(t)
		token, _, err := f.tokens.Mint("u1")
		require.NoError(t, err)
		svc := NewAuthService(f.users, failingSessions{}, f.tokens)

		check := svc.CheckSession(ctx, token)
		assert.False(t, check.Valid)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	resp := f.register(t, "A", "a@x.com", "secret1")

	session, err := f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, session.UserID)

	_, err = f.svc.Authenticate(ctx, "bad")
	require.ErrorIs(t, err, ErrInvalidToken)

	svc := NewAuthService(f.users, failingSessions{}, f.tokens)
	_, err = svc.Authenticate(ctx, resp.Token)
	require.ErrorIs(t, err, errBoom)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "A", "a@x.com", "secret1")
	f.clock.Advance(time.Second)
	f.register(t, "B", "b@x.com", "secret1")

	sessions, err := f.svc.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a@x.com", sessions[0].Email)
	assert.Equal(t, "b@x.com", sessions[1].Email)

	svc := NewAuthService(f.users, failingSessions{}, f.tokens)
	_, err = svc.ListSessions(ctx)
	require.ErrorIs(t, err, errBoom)
}

// racingUsers simulates another request inserting the same email between
// the existence check and the insert.
type racingUsers struct {
	*repository.MemoryUserRepository
}

func (r *racingUsers) GetByEmail(context.Context, string) (*domain.UserRow, error) {
	return nil, nil
}

func (r *racingUsers) Create(context.Context, string, string, string) (string, error) {
	return "", domain.ErrDuplicateEmail
}

type failingUsers struct{}

func (failingUsers) GetByEmail(context.Context, string) (*domain.UserRow, error) { return nil, errBoom }
func (failingUsers) GetByID(context.Context, string) (*domain.UserRow, error)    { return nil, errBoom }
func (failingUsers) Create(context.Context, string, string, string) (string, error) {
	return "", errBoom
}

type failingSessions struct{}

func (failingSessions) Get(context.Context, string) (*domain.Session, error) { return nil, errBoom }
func (failingSessions) Set(context.Context, domain.Session) error            { return errBoom }
func (failingSessions) Delete(context.Context, string) error                 { return errBoom }
func (failingSessions) List(context.Context) ([]domain.Session, error)       { return nil, errBoom }
