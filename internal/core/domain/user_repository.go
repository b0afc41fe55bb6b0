package domain

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateEmail is returned by UserRepository.Create when the store's
// unique email constraint rejects the insert.
var ErrDuplicateEmail = errors.New("duplicate email")

// UserRow represents a user record returned from the credential store.
// It includes the password hash so the Logic layer can verify credentials.
type UserRow struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserRepository defines the data-access contract for user operations.
// Implementations live in internal/core/repository (Core layer).
// The Logic layer depends on this interface only, never on a driver directly.
type UserRepository interface {
	// GetByEmail returns the user matching the given email exactly.
	// Returns (nil, nil) when no user is found.
	GetByEmail(ctx context.Context, email string) (*UserRow, error)

	// GetByID returns the user with the given identifier.
	// Returns (nil, nil) when no user is found or the identifier is malformed.
	GetByID(ctx context.Context, id string) (*UserRow, error)

	// Create inserts a new user and returns the generated user ID.
	// Returns ErrDuplicateEmail when the email is already taken.
	Create(ctx context.Context, name, email, passwordHash string) (string, error)
}
