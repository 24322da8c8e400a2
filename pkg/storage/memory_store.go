package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store intended for tests, examples and
// single-process hosts. It makes no persistence assumptions.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
	quota int
	used  int
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithQuota caps the total size (keys plus values, in bytes) the store accepts.
// Writes past the cap fail with ErrQuotaExceeded. Zero means unlimited.
func WithQuota(bytes int) MemoryOption {
	return func(s *MemoryStore) {
		if bytes > 0 {
			s.quota = bytes
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{items: map[string]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	value, ok := s.items[key]
	s.mu.RUnlock()
	return value, ok, nil
}

func (s *MemoryStore) SetItem(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.used + len(key) + len(value)
	if previous, ok := s.items[key]; ok {
		next -= len(key) + len(previous)
	}
	if s.quota > 0 && next > s.quota {
		return ErrQuotaExceeded
	}
	s.items[key] = value
	s.used = next
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	if previous, ok := s.items[key]; ok {
		s.used -= len(key) + len(previous)
		delete(s.items, key)
	}
	s.mu.Unlock()
	return nil
}

// Keys returns the held keys sorted alphabetically.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// Len reports how many keys the store holds.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot returns a copy of every key and value.
func (s *MemoryStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.items))
	for key, value := range s.items {
		out[key] = value
	}
	return out
}
