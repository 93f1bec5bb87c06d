// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/studychat-tui/internal/logging"
)

const prefsSchema = `
CREATE TABLE IF NOT EXISTS prefs (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore persists values in a single SQLite table. Values are cached in
// memory and written through on every change.
type SQLiteStore struct {
	db  *sql.DB
	mem *MemoryStore
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(prefsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, mem: NewMemoryStore(), log: logging.For("storage")}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) loadAll() error {
	rows, err := s.db.Query("SELECT key, value FROM prefs")
	if err != nil {
		return fmt.Errorf("failed to load prefs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("failed to scan pref: %w", err)
		}
		s.mem.Set(k, v)
	}
	return rows.Err()
}

// Get returns the value for key.
func (s *SQLiteStore) Get(key string) (string, bool) {
	return s.mem.Get(key)
}

// Set stores value under key.
func (s *SQLiteStore) Set(key, value string) {
	s.mem.Set(key, value)
	_, err := s.db.Exec(
		`INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("failed to persist pref")
	}
}

// Clear removes key.
func (s *SQLiteStore) Clear(key string) {
	s.mem.Clear(key)
	if _, err := s.db.Exec("DELETE FROM prefs WHERE key = ?", key); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("failed to clear pref")
	}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
