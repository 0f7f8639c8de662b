package authority

import (
	"context"
	"sync"
	"time"
)

// RevocationStore records the hashes of authentication tokens invalidated
// before their natural expiry. Entries carry the token's own expiry so
// pruning never outlives the token it blocks.
//
// Implementations backed by a shared store (Redis, MongoDB) make logout on
// one instance visible to Validate calls on every other instance. The
// in-memory store is instance-local and suited to single-process
// deployments and tests.
type RevocationStore interface {
	Add(ctx context.Context, tokenHash string, expiresAt time.Time) error
	Contains(ctx context.Context, tokenHash string) (bool, error)
	Prune(ctx context.Context, now time.Time) error
}

// MemoryRevocations is the in-memory store. The mutex is held only for map
// access, never across any external call.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: make(map[string]time.Time)}
}

func (s *MemoryRevocations) Add(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tokenHash] = expiresAt
	return nil
}

func (s *MemoryRevocations) Contains(ctx context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[tokenHash]
	return ok, nil
}

// Prune drops entries whose expiry has passed. An entry for a still-valid
// token is never removed.
func (s *MemoryRevocations) Prune(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, hash)
		}
	}
	return nil
}

// Len reports the number of live entries. Used by tests and diagnostics.
func (s *MemoryRevocations) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
