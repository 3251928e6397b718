// Package memory implements the in-memory metric store.
package memory

import (
	"maps"
	"sync"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/ports"
)

// Store keeps the latest value of every metric with coarse-grained RW locking.
type Store struct {
	values map[string]any
	mu     sync.RWMutex
}

var _ ports.MetricStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{values: make(map[string]any)}
}

// Get returns the current value of key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key. A nil value removes the key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value)
}

// Apply writes a batch of values under a single lock so that Snapshot never
// observes half of an update.
func (s *Store) Apply(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.set(k, v)
	}
}

// Snapshot copies the current values to avoid exposing internal state.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.Snapshot, len(s.values))
	maps.Copy(out, s.values)
	return out
}

func (s *Store) set(key string, value any) {
	if value == nil {
		delete(s.values, key)
		return
	}
	s.values[key] = value
}
