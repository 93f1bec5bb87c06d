// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/storage"
)

// =============================================================================
// TERMINAL RENDERING
// =============================================================================

type rendererKey struct {
	mode  storage.ThemeMode
	width int
}

var (
	termMu        sync.Mutex
	termRenderers = make(map[rendererKey]*glamour.TermRenderer)
)

// termRenderer returns a cached glamour renderer for mode and width.
func termRenderer(mode storage.ThemeMode, width int) (*glamour.TermRenderer, error) {
	if width < 20 {
		width = 20
	}
	key := rendererKey{mode: mode, width: width}

	termMu.Lock()
	defer termMu.Unlock()
	if r, ok := termRenderers[key]; ok {
		return r, nil
	}

	style := "dark"
	if mode == storage.ThemeLight {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	termRenderers[key] = r
	return r, nil
}

// Terminal renders Markdown for a terminal of the given width. The input
// is returned unchanged if rendering fails.
func Terminal(text string, mode storage.ThemeMode, width int) string {
	r, err := termRenderer(mode, width)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// Message renders one transcript entry. Only finished assistant replies
// are treated as Markdown.
func Message(msg model.Message, mode storage.ThemeMode, width int) string {
	if !msg.IsAssistant() || msg.Streaming {
		return msg.Content
	}
	return Terminal(msg.Content, mode, width)
}
