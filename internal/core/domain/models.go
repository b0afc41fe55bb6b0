package domain

import (
	"encoding/json"
	"time"
)

// RegisterRequest is the request body for POST /register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the public view of a user, without the password hash.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User  User
	Token string
}

// SessionInfo describes how long a session has been active.
type SessionInfo struct {
	LoginTime time.Time
	Duration  time.Duration
}

// MarshalJSON renders the duration in milliseconds.
func (s SessionInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		LoginTime       time.Time `json:"loginTime"`
		SessionDuration int64     `json:"sessionDuration"`
	}{
		LoginTime:       s.LoginTime,
		SessionDuration: s.Duration.Milliseconds(),
	})
}

// Profile is the authenticated user's record plus session metadata.
type Profile struct {
	User    User        `json:"user"`
	Session SessionInfo `json:"session"`
}

// SessionCheck is the result of a session validity check.
// User and Session are set only when Valid is true.
type SessionCheck struct {
	Valid   bool
	Message string
	User    *User
	Session *SessionInfo
}
