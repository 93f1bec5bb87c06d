// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BACKEND CONTRACT TESTS
// =============================================================================

func backends(t *testing.T) map[string]func() Store {
	dir := t.TempDir()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			s, err := NewFileStore(filepath.Join(dir, "state.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(dir, "state.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStore_GetSetClear(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()

			_, ok := s.Get("missing")
			assert.False(t, ok)

			s.Set("k", "v1")
			s.Set("k", "v2")
			v, ok := s.Get("k")
			assert.True(t, ok)
			assert.Equal(t, "v2", v)

			s.Clear("k")
			_, ok = s.Get("k")
			assert.False(t, ok)

			// Clearing a missing key is a no-op.
			s.Clear("k")
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	s.Set(KeyActiveSession, "42")
	s.Set(KeyThemeMode, "light")
	s.Clear(KeyThemeMode)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok := reopened.Get(KeyActiveSession)
	assert.True(t, ok)
	assert.Equal(t, "42", v)
	_, ok = reopened.Get(KeyThemeMode)
	assert.False(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]string
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, map[string]string{KeyActiveSession: "42"}, onDisk)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	s.Set(KeyActiveSession, "7")
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok := reopened.Get(KeyActiveSession)
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", "")
	assert.Error(t, err)

	s, err := Open(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestFileStore_ConcurrentWrites(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Set(KeyThemeMode, "dark")
			_, _ = s.Get(KeyThemeMode)
		}()
	}
	wg.Wait()

	reopened, err := NewFileStore(s.Path())
	require.NoError(t, err)
	v, _ := reopened.Get(KeyThemeMode)
	assert.Equal(t, "dark", v)
}

// =============================================================================
// POINTER TESTS
// =============================================================================

func TestPointers_ActiveSession(t *testing.T) {
	p := NewPointers(NewMemoryStore())
	assert.True(t, p.ActiveSessionID().IsZero())

	p.SetActiveSessionID("12")
	assert.Equal(t, "12", p.ActiveSessionID().String())

	p.SetActiveSessionID("")
	assert.True(t, p.ActiveSessionID().IsZero())

	p.SetActiveSessionID("3")
	p.ClearActiveSessionID()
	assert.True(t, p.ActiveSessionID().IsZero())
}

func TestPointers_Theme(t *testing.T) {
	store := NewMemoryStore()
	p := NewPointers(store)
	assert.Equal(t, ThemeDark, p.ThemeMode())

	assert.Equal(t, ThemeLight, p.ToggleTheme())
	v, _ := store.Get(KeyThemeMode)
	assert.Equal(t, "light", v)

	assert.Equal(t, ThemeDark, p.ToggleTheme())

	store.Set(KeyThemeMode, "sepia")
	assert.Equal(t, ThemeDark, p.ThemeMode())
}

func TestPointers_ConcurrentToggles(t *testing.T) {
	p := NewPointers(NewMemoryStore())

	const n = 50
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		lights int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.ToggleTheme() == ThemeLight {
				mu.Lock()
				lights++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Every toggle saw a distinct starting mode, so results alternate.
	assert.Equal(t, n/2, lights)
	assert.Equal(t, ThemeDark, p.ThemeMode())
}
