// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/studychat-tui/internal/ui/styles"
)

// =============================================================================
// CLI OUTPUT STYLES
// =============================================================================
// Line-mode output shares the palette of the full-screen UI. Adaptive
// colors pick their light or dark side from the terminal background.

var (
	// SectionStyle is used for section headers
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.TextPrimary)

	// LabelStyle is used for speaker labels and field names
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	UserLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Cyan)

	AssistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(styles.Purple)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(styles.Overlay)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan)
)

// =============================================================================
// HELPERS
// =============================================================================

// paint renders text with style if colors are enabled, otherwise returns the
// text unmodified.
func paint(style lipgloss.Style, text string) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}

// separator renders a horizontal rule fitted to the terminal.
func separator() string {
	width := GetTerminalWidth() - 4
	if width > 72 {
		width = 72
	}
	return paint(SeparatorStyle, strings.Repeat("-", width))
}

// truncate shortens s to width display cells, adding "..." when cut.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "...")
}

// pad right-pads s to width display cells.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
