package auth

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	userID    string
	expiresAt time.Time
}

// InMemoryRefreshStore implements RefreshStore for tests and local
// development. It keeps at most one refresh token per user, mirroring the
// rotate-on-use column in the persistent store.
type InMemoryRefreshStore struct {
	mu      sync.RWMutex
	byToken map[string]memorySession
	byUser  map[string]string
}

// NewInMemoryRefreshStore returns a RefreshStore backed by in-memory maps.
func NewInMemoryRefreshStore() *InMemoryRefreshStore {
	return &InMemoryRefreshStore{
		byToken: make(map[string]memorySession),
		byUser:  make(map[string]string),
	}
}

// SaveRefreshToken stores the rotated token, dropping the user's previous one.
func (s *InMemoryRefreshStore) SaveRefreshToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byUser[userID]; ok {
		delete(s.byToken, old)
	}
	s.byToken[token] = memorySession{userID: userID, expiresAt: expiresAt}
	s.byUser[userID] = token
	return nil
}

// UserIDByRefreshToken resolves a refresh token to the user it was issued to.
func (s *InMemoryRefreshStore) UserIDByRefreshToken(_ context.Context, token string) (string, time.Time, error) {
	s.mu.RLock()
	session, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return "", time.Time{}, ErrSessionNotFound
	}
	return session.userID, session.expiresAt, nil
}

// ClearRefreshToken forgets the user's active token.
func (s *InMemoryRefreshStore) ClearRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.byUser[userID]; ok {
		delete(s.byToken, token)
		delete(s.byUser, userID)
	}
	return nil
}

// Has reports whether a refresh token exists. Useful for tests.
func (s *InMemoryRefreshStore) Has(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byToken[token]
	return ok
}
