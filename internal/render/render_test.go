// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/storage"
)

func TestHTML_Markdown(t *testing.T) {
	out, err := HTML("# Cells\n\nThe **cell** is\nthe unit of life.")
	require.NoError(t, err)

	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<strong>cell</strong>")
	assert.Contains(t, out, "<br")
}

func TestHTML_FencedCodeHighlighted(t *testing.T) {
	out, err := HTML("```go\nfunc main() {}\n```")
	require.NoError(t, err)

	assert.Contains(t, out, `class="chroma"`)
	assert.Contains(t, out, "main")
}

func TestHTML_StripsScript(t *testing.T) {
	out, err := HTML("hello <script>alert('x')</script> <a href=\"javascript:alert(1)\">link</a>")
	require.NoError(t, err)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
}

func TestHTML_Table(t *testing.T) {
	out, err := HTML("| a | b |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
}

func TestStylesheet(t *testing.T) {
	dark := Stylesheet(storage.ThemeDark)
	light := Stylesheet(storage.ThemeLight)

	assert.Contains(t, dark, ".chroma")
	assert.Contains(t, light, ".chroma")
	assert.NotEqual(t, dark, light)
	assert.Equal(t, "monokai", CodeStyle(storage.ThemeDark))
	assert.Equal(t, "github", CodeStyle(storage.ThemeLight))
}

func TestSetCodeStyles(t *testing.T) {
	t.Cleanup(func() { SetCodeStyles(DefaultCodeStyleDark, DefaultCodeStyleLight) })

	SetCodeStyles("dracula", "")
	assert.Equal(t, "dracula", CodeStyle(storage.ThemeDark))
	assert.Equal(t, "github", CodeStyle(storage.ThemeLight))

	SetCodeStyles("", "no-such-style")
	assert.Contains(t, Stylesheet(storage.ThemeLight), ".chroma", "unknown styles fall back")
}

func TestMessage_LiteralUnlessFinishedAssistant(t *testing.T) {
	user := model.NewUserMessage("**not bold**")
	assert.Equal(t, "**not bold**", Message(user, storage.ThemeDark, 80))

	streaming := model.NewAssistantMessage("**partial")
	streaming.Streaming = true
	assert.Equal(t, "**partial", Message(streaming, storage.ThemeDark, 80))

	done := model.NewAssistantMessage("**bold** text")
	out := Message(done, storage.ThemeDark, 80)
	assert.Contains(t, out, "bold")
	assert.NotContains(t, out, "**")
}

func TestTerminal_NarrowWidthClamped(t *testing.T) {
	out := Terminal(strings.Repeat("word ", 20), storage.ThemeLight, 1)
	assert.Contains(t, out, "word")
}
