// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/studychat-tui/internal/logging"
	"github.com/jeranaias/studychat-tui/internal/util"
)

// FileStore persists values as a JSON object. Every Set and Clear rewrites
// the file before returning.
type FileStore struct {
	path string
	mem  *MemoryStore

	// writeMu serializes file rewrites so the file always reflects the
	// latest in-memory state.
	writeMu sync.Mutex
	log     zerolog.Logger
}

// NewFileStore opens (or creates) the JSON store at path. A missing file is
// an empty store; a corrupt file is an error.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	s := &FileStore{
		path: absPath,
		mem:  NewMemoryStore(),
		log:  logging.For("storage"),
	}

	data, err := os.ReadFile(absPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.mem.values); err != nil {
			return nil, fmt.Errorf("failed to parse state file %s: %w", absPath, err)
		}
		if s.mem.values == nil {
			s.mem.values = make(map[string]string)
		}
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value for key.
func (s *FileStore) Get(key string) (string, bool) {
	return s.mem.Get(key)
}

// Set stores value under key and rewrites the file.
func (s *FileStore) Set(key, value string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mem.Set(key, value)
	s.flush()
}

// Clear removes key and rewrites the file.
func (s *FileStore) Clear(key string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mem.Clear(key)
	s.flush()
}

// flush writes the whole map. Caller holds writeMu.
func (s *FileStore) flush() {
	data, err := json.MarshalIndent(s.mem.snapshot(), "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode state")
		return
	}
	// RELIABILITY: Atomic write with fsync prevents a torn state file
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("failed to persist state")
	}
}
