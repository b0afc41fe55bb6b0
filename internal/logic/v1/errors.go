// Package v1 provides authentication business logic for API version 1.
//
// Error Handling:
// This package defines sentinel errors for every failure a caller can act
// on. Business methods wrap them with context using fmt.Errorf("%w"); any
// error that wraps none of them is an internal failure (store down, hashing
// failed) and maps to 500.
//
// Error Checking (in handlers):
//
//	switch {
//	case errors.Is(err, logicv1.ErrValidation), errors.Is(err, logicv1.ErrUserExists):
//	    c.JSON(http.StatusBadRequest, gin.H{"error": ...})
//	case errors.Is(err, logicv1.ErrInvalidCredentials):
//	    c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
//	}
package v1

import "errors"

// Sentinel errors for authentication operations.
var (
	// ErrValidation indicates missing or malformed input.
	// HTTP Status: 400 Bad Request
	ErrValidation = errors.New("validation failed")

	// ErrUserExists indicates the email is already registered.
	// HTTP Status: 400 Bad Request
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	// The two cases are deliberately not distinguished.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken indicates a missing, malformed, forged or expired token.
	// HTTP Status: 401 Unauthorized
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionExpired indicates a valid token whose user has no session.
	// HTTP Status: 401 Unauthorized
	ErrSessionExpired = errors.New("session expired")

	// ErrUserNotFound indicates the token's user no longer exists.
	// HTTP Status: 401 Unauthorized
	ErrUserNotFound = errors.New("user not found")
)

// ValidationError carries a caller-facing message and wraps ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func validationError(msg string) error {
	return &ValidationError{Message: msg}
}
