package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/duynhne/session-auth/internal/core/domain"
)

const sessionKeyPrefix = "session:"

// RedisSessionStore implements domain.SessionStore on Redis so sessions
// survive restarts and can be shared between processes.
// Keys carry no TTL, matching the in-memory store.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a RedisSessionStore on an existing client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(userID string) string {
	return sessionKeyPrefix + userID
}

// Get returns the session for userID, or (nil, nil) when absent.
func (s *RedisSessionStore) Get(ctx context.Context, userID string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session %q: %w", userID, err)
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", userID, err)
	}
	return &session, nil
}

// Set stores the session, replacing any existing one for the same user.
func (s *RedisSessionStore) Set(ctx context.Context, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", session.UserID, err)
	}
	return s.client.Set(ctx, sessionKey(session.UserID), raw, 0).Err()
}

// Delete removes the session for userID if present.
func (s *RedisSessionStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, sessionKey(userID)).Err()
}

// List returns every session ordered by login time.
func (s *RedisSessionStore) List(ctx context.Context) ([]domain.Session, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	if len(keys) == 0 {
		return []domain.Session{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	out := make([]domain.Session, 0, len(values))
	for _, v := range values {
		// Keys deleted between SCAN and MGET come back as nil.
		str, ok := v.(string)
		if !ok {
			continue
		}
		var session domain.Session
		if err := json.Unmarshal([]byte(str), &session); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		out = append(out, session)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LoginTime.Before(out[j].LoginTime)
	})
	return out, nil
}
