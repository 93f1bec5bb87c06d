// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sync"

	"github.com/jeranaias/studychat-tui/internal/model"
)

// Persisted keys.
const (
	KeyActiveSession = "study_session_id"
	KeyThemeMode     = "theme_mode"
)

// ThemeMode is the persisted color scheme.
type ThemeMode string

const (
	ThemeDark  ThemeMode = "dark"
	ThemeLight ThemeMode = "light"
)

// Pointers gives typed access to the persisted active session id and theme.
// It is safe for concurrent use.
type Pointers struct {
	mu    sync.Mutex
	store Store
}

// NewPointers wraps store. A nil store falls back to memory.
func NewPointers(store Store) *Pointers {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Pointers{store: store}
}

// ActiveSessionID returns the persisted active session id, or "" if unset.
func (p *Pointers) ActiveSessionID() model.SessionID {
	v, ok := p.store.Get(KeyActiveSession)
	if !ok {
		return ""
	}
	return model.SessionID(v)
}

// SetActiveSessionID persists id. An empty id clears the key.
func (p *Pointers) SetActiveSessionID(id model.SessionID) {
	if id.IsZero() {
		p.store.Clear(KeyActiveSession)
		return
	}
	p.store.Set(KeyActiveSession, id.String())
}

// ClearActiveSessionID removes the persisted active session id.
func (p *Pointers) ClearActiveSessionID() {
	p.store.Clear(KeyActiveSession)
}

// ThemeMode returns the persisted theme, defaulting to dark.
func (p *Pointers) ThemeMode() ThemeMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.themeModeLocked()
}

func (p *Pointers) themeModeLocked() ThemeMode {
	v, _ := p.store.Get(KeyThemeMode)
	if ThemeMode(v) == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// SetThemeMode persists mode. Anything other than light is stored as dark.
func (p *Pointers) SetThemeMode(mode ThemeMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setThemeModeLocked(mode)
}

func (p *Pointers) setThemeModeLocked(mode ThemeMode) {
	if mode != ThemeLight {
		mode = ThemeDark
	}
	p.store.Set(KeyThemeMode, string(mode))
}

// ToggleTheme flips between dark and light and returns the new mode.
// Concurrent toggles never observe the same starting mode.
func (p *Pointers) ToggleTheme() ThemeMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := ThemeLight
	if p.themeModeLocked() == ThemeLight {
		next = ThemeDark
	}
	p.setThemeModeLocked(next)
	return next
}
