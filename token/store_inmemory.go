package token

import (
	"context"
	"sync"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps the pair for the lifetime of the process.
type InMemoryStore struct {
	mu   sync.RWMutex
	pair Pair
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	return nil
}

func (s *InMemoryStore) Read(_ context.Context) (Pair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pair.Empty() {
		return Pair{}, false
	}
	return s.pair, true
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	return nil
}
