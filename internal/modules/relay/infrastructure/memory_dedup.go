package infrastructure

import (
	"context"
	"sync"

	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
)

var _ ports.DedupStore = (*MemoryDedupStore)(nil)

// MemoryDedupStore is an in-memory implementation of DedupStore.
// Its contents are lost on restart.
type MemoryDedupStore struct {
	mu     sync.Mutex
	marked map[string]struct{}
}

// NewMemoryDedupStore creates a new MemoryDedupStore.
func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{
		marked: make(map[string]struct{}),
	}
}

// Has reports whether identity was marked.
func (s *MemoryDedupStore) Has(_ context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.marked[identity]
	return ok, nil
}

// Mark records identity.
func (s *MemoryDedupStore) Mark(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marked[identity] = struct{}{}
	return nil
}

// MarkIfAbsent records identity and reports whether it was not marked before.
func (s *MemoryDedupStore) MarkIfAbsent(_ context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.marked[identity]; ok {
		return false, nil
	}
	s.marked[identity] = struct{}{}
	return true, nil
}
