package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
)

const welcomedKeyPrefix = "welcomed:"

var _ ports.DedupStore = (*PebbleDedupStore)(nil)

// PebbleDedupStore persists marked identities in a Pebble database so that
// welcomes survive restarts.
type PebbleDedupStore struct {
	// mu serializes MarkIfAbsent so the Get and Set pair is atomic.
	mu sync.Mutex
	db *pebble.DB
}

// OpenPebbleDedupStore opens or creates the database at path.
func OpenPebbleDedupStore(path string) (*PebbleDedupStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create dedup directory: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open dedup store: %w", err)
	}
	return &PebbleDedupStore{db: db}, nil
}

// Close closes the underlying database.
func (s *PebbleDedupStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Has reports whether identity was marked.
func (s *PebbleDedupStore) Has(_ context.Context, identity string) (bool, error) {
	return s.has(identity)
}

// Mark records identity.
func (s *PebbleDedupStore) Mark(_ context.Context, identity string) error {
	if err := s.db.Set(welcomedKey(identity), []byte{1}, pebble.Sync); err != nil {
		return fmt.Errorf("failed to mark %s: %w", identity, err)
	}
	return nil
}

// MarkIfAbsent records identity and reports whether it was not marked before.
func (s *PebbleDedupStore) MarkIfAbsent(ctx context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked, err := s.has(identity)
	if err != nil {
		return false, err
	}
	if marked {
		return false, nil
	}
	if err := s.Mark(ctx, identity); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PebbleDedupStore) has(identity string) (bool, error) {
	_, closer, err := s.db.Get(welcomedKey(identity))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", identity, err)
	}
	closer.Close()
	return true, nil
}

func welcomedKey(identity string) []byte {
	return []byte(welcomedKeyPrefix + identity)
}
