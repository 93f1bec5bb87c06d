// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/render"
	"github.com/jeranaias/studychat-tui/internal/storage"
)

// =============================================================================
// RENDER CACHE
// =============================================================================

// maxCachedMessages bounds the cache; it is cleared wholesale when full.
const maxCachedMessages = 512

// renderCache memoizes rendered finalized messages. Markdown rendering is
// far too slow to redo for the whole transcript at every frame while a
// reply streams in. Entries are keyed by a content hash and invalidated
// when the theme or width changes.
type renderCache struct {
	mu      sync.Mutex
	mode    storage.ThemeMode
	width   int
	entries map[string]string
	hits    uint64
	misses  uint64
}

func newRenderCache() *renderCache {
	return &renderCache{entries: make(map[string]string)}
}

// Render returns msg rendered for mode and width. Streaming messages are
// never cached.
func (rc *renderCache) Render(msg model.Message, mode storage.ThemeMode, width int) string {
	if msg.Streaming {
		return render.Message(msg, mode, width)
	}

	key := hashContent(string(msg.Role) + "\x00" + msg.Content)

	rc.mu.Lock()
	if rc.mode != mode || rc.width != width || len(rc.entries) >= maxCachedMessages {
		rc.entries = make(map[string]string)
		rc.mode = mode
		rc.width = width
	}
	if out, ok := rc.entries[key]; ok {
		rc.hits++
		rc.mu.Unlock()
		return out
	}
	rc.misses++
	rc.mu.Unlock()

	out := render.Message(msg, mode, width)

	rc.mu.Lock()
	if rc.mode == mode && rc.width == width {
		rc.entries[key] = out
	}
	rc.mu.Unlock()
	return out
}

// Reset drops every entry. Used when code highlighting styles change.
func (rc *renderCache) Reset() {
	rc.mu.Lock()
	rc.entries = make(map[string]string)
	rc.mu.Unlock()
}

// Stats returns cache hits and misses.
func (rc *renderCache) Stats() (hits, misses uint64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.hits, rc.misses
}

// hashContent computes a SHA-256 hash of content.
func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}
