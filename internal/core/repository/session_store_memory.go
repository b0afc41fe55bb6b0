package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/duynhne/session-auth/internal/core/domain"
)

// MemorySessionStore implements domain.SessionStore in process memory.
// Entries live until deleted or the process exits.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domain.Session),
	}
}

// Get returns the session for userID, or (nil, nil) when absent.
func (s *MemorySessionStore) Get(_ context.Context, userID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// Set stores the session, replacing any existing one for the same user.
func (s *MemorySessionStore) Set(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.UserID] = session
	return nil
}

// Delete removes the session for userID if present.
func (s *MemorySessionStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

// List returns every session ordered by login time.
func (s *MemorySessionStore) List(_ context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LoginTime.Before(out[j].LoginTime)
	})
	return out, nil
}

// Len returns the number of sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
