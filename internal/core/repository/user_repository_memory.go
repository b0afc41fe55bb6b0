package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/duynhne/session-auth/internal/core/domain"
)

// MemoryUserRepository implements domain.UserRepository in process memory.
// Used for local development (DB_DRIVER=memory) and tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	nextID  int
	byID    map[string]domain.UserRow
	byEmail map[string]string
}

// NewMemoryUserRepository creates an empty MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]domain.UserRow),
		byEmail: make(map[string]string),
	}
}

// GetByEmail returns the user matching the given email.
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.UserRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	row := r.byID[id]
	return &row, nil
}

// GetByID returns the user with the given ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.UserRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// Create inserts a new user and returns the generated user ID.
func (r *MemoryUserRepository) Create(_ context.Context, name, email, passwordHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return "", domain.ErrDuplicateEmail
	}

	r.nextID++
	id := strconv.Itoa(r.nextID)
	r.byID[id] = domain.UserRow{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.byEmail[email] = id
	return id, nil
}
