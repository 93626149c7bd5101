// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store holds plugin key/value data. Every plugin reads and writes
// its own namespace, named after the plugin key.
package store

import (
	"context"
	"slices"
	"sync"

	plugins "github.com/holomush/plugbridge/internal/plugin"
)

// MemoryStore keeps plugin data in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ plugins.KVStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

// Get returns a copy of the value, or nil when the key is absent.
func (s *MemoryStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[namespace][key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(v), nil
}

// Set stores a copy of value.
func (s *MemoryStore) Set(_ context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	if value == nil {
		value = []byte{}
	}
	ns[key] = slices.Clone(value)
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[namespace], key)
	return nil
}

// Keys returns the namespace's keys in order.
func (s *MemoryStore) Keys(_ context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data[namespace]))
	for k := range s.data[namespace] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}
