// Package store provides persistence adapters for atomik persistent
// sources: JSON files on disk, BadgerDB, S3, and an in-memory map for
// tests. All adapters implement atomik.Store.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/atomik-dev/atomik/pkg/atomik"
)

// Every adapter satisfies the core's Store contract.
var (
	_ atomik.Store = (*MapStore)(nil)
	_ atomik.Store = (*FileStore)(nil)
	_ atomik.Store = (*BadgerStore)(nil)
	_ atomik.Store = (*S3Store)(nil)
)

// SanitizeKey makes a storage key filesystem- and object-key-safe.
// Alphanumerics, '_' and '-' pass through; everything else becomes '_'.
func SanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// MapStore is an in-memory adapter. Values do not survive the process;
// useful for tests and as a null backend.
type MapStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMapStore creates an empty in-memory store.
func NewMapStore() *MapStore {
	return &MapStore{data: make(map[string][]byte)}
}

// Load implements atomik.Store.
func (s *MapStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), d...), true, nil
}

// Save implements atomik.Store.
func (s *MapStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

// Remove deletes a key. Missing keys are a no-op.
func (s *MapStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len returns the number of stored keys.
func (s *MapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
