package domain

import (
	"context"
	"time"
)

// Session marks a user as currently logged in. The cached name and email
// let session checks answer without a credential store round trip.
type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	LoginTime time.Time `json:"loginTime"`
}

// SessionStore owns all Session records, keyed by user ID.
// There is at most one session per user: Set overwrites.
type SessionStore interface {
	// Get returns the session for userID, or (nil, nil) when absent.
	Get(ctx context.Context, userID string) (*Session, error)

	// Set stores the session, replacing any existing one for the same user.
	Set(ctx context.Context, session Session) error

	// Delete removes the session for userID. Deleting a missing session is not an error.
	Delete(ctx context.Context, userID string) error

	// List returns every current session.
	List(ctx context.Context) ([]Session, error)
}
