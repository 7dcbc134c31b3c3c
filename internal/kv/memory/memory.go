package memory

import (
	"context"
	"sync"

	"spesa/internal/kv"
)

// Store keeps values in process memory. Nothing survives a restart.
type Store struct {
	mu     sync.Mutex
	values map[string][]byte
	writes int
}

var _ kv.Store = (*Store)(nil)

func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

// NewWith returns a store pre-seeded with the given values.
func NewWith(seed map[string][]byte) *Store {
	s := New()
	for k, v := range seed {
		s.values[k] = append([]byte(nil), v...)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	s.writes++
	return nil
}

// Writes returns how many Set calls succeeded.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) Close() error { return nil }
