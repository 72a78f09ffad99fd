package claims

import (
	"context"
	"sync"
)

// MemoryStore is an in-process claims store. It stands in for the hosted
// identity platform in tests and single-process deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	claims map[string]Claims
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory claims store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims: make(map[string]Claims),
	}
}

// Get returns a copy of the user's claims.
func (s *MemoryStore) Get(_ context.Context, userID string) (Claims, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.claims[userID]; ok {
		return c.Clone(), nil
	}
	return Claims{}, nil
}

// Set replaces the user's claims.
func (s *MemoryStore) Set(_ context.Context, userID string, c Claims) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims[userID] = c.Clone()
	return nil
}
