// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"sync"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a durable string key-value map.
//
// Implementations never return errors: a failed write is logged and the
// in-memory value still reflects the write, so reads stay consistent with
// what the caller last set.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Clear(key string)
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open creates a store for the named backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps values in memory only.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// Clear removes key.
func (s *MemoryStore) Clear(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// snapshot returns a copy of all values.
func (s *MemoryStore) snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
