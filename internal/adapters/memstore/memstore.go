// Package memstore implements ports.KeyValueStore in process memory.
// Nothing survives a restart.
package memstore

import (
	"context"
	"sync"

	"github.com/upjv/prospection-ui/internal/ports"
)

// Store is a mutex-guarded map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]string
}

var _ ports.KeyValueStore = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	if !ok {
		return "", ports.ErrKeyNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}
