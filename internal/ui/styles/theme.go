// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/studychat-tui/internal/storage"
)

// Theme holds all the styled components for one color scheme.
type Theme struct {
	Mode storage.ThemeMode

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	App            lipgloss.Style
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderMeta     lipgloss.Style
	LevelBadge     lipgloss.Style
	Divider        lipgloss.Style
	Sidebar        lipgloss.Style
	SidebarFocused lipgloss.Style

	// ==========================================================================
	// SESSION LIST
	// ==========================================================================

	SessionItem     lipgloss.Style
	SessionActive   lipgloss.Style
	SessionSelected lipgloss.Style
	SessionMeta     lipgloss.Style
	SearchPrompt    lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	UserBubble     lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantBody  lipgloss.Style
	StreamCursor   lipgloss.Style
	EmptyState     lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	StatusOK       lipgloss.Style
	StatusBusy     lipgloss.Style
	StatusError    lipgloss.Style
	Confirm        lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style
	Spinner        lipgloss.Style
}

// DetectMode resolves a configured theme name. "auto" and unknown values
// follow the terminal background.
func DetectMode(name string) storage.ThemeMode {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(storage.ThemeLight):
		return storage.ThemeLight
	case string(storage.ThemeDark):
		return storage.ThemeDark
	}
	if termenv.HasDarkBackground() {
		return storage.ThemeDark
	}
	return storage.ThemeLight
}

// Resolve picks the side of an adaptive color matching mode.
func Resolve(c lipgloss.AdaptiveColor, mode storage.ThemeMode) lipgloss.Color {
	if mode == storage.ThemeLight {
		return lipgloss.Color(c.Light)
	}
	return lipgloss.Color(c.Dark)
}

// NewTheme builds the style set for mode. Anything other than light is dark.
func NewTheme(mode storage.ThemeMode) *Theme {
	if mode != storage.ThemeLight {
		mode = storage.ThemeDark
	}
	c := func(ac lipgloss.AdaptiveColor) lipgloss.Color { return Resolve(ac, mode) }

	t := &Theme{Mode: mode}

	t.App = lipgloss.NewStyle().Foreground(c(TextPrimary))
	t.Header = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Foreground(c(TextPrimary)).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(c(Cyan))
	t.HeaderMeta = lipgloss.NewStyle().Foreground(c(TextSecondary))
	t.LevelBadge = lipgloss.NewStyle().
		Foreground(c(TextInverse)).
		Background(c(Amber)).
		Padding(0, 1)
	t.Divider = lipgloss.NewStyle().Foreground(c(Overlay))

	sidebar := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		Padding(0, 1)
	t.Sidebar = sidebar.BorderForeground(c(Overlay))
	t.SidebarFocused = sidebar.BorderForeground(c(Cyan))

	t.SessionItem = lipgloss.NewStyle().Foreground(c(TextSecondary))
	t.SessionActive = lipgloss.NewStyle().Bold(true).Foreground(c(Purple))
	t.SessionSelected = lipgloss.NewStyle().
		Foreground(c(TextPrimary)).
		Background(c(SelectionBg))
	t.SessionMeta = lipgloss.NewStyle().Foreground(c(TextMuted))
	t.SearchPrompt = lipgloss.NewStyle().Foreground(c(Cyan))

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(c(UserBubbleBorder))
	t.UserBubble = lipgloss.NewStyle().
		Foreground(c(UserBubbleFg)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c(UserBubbleBorder)).
		Padding(0, 1)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(c(AssistantBubbleBorder))
	t.AssistantBody = lipgloss.NewStyle().Foreground(c(AssistantBubbleFg))
	t.StreamCursor = lipgloss.NewStyle().Foreground(c(Purple)).Bold(true)
	t.EmptyState = lipgloss.NewStyle().Foreground(c(TextMuted)).Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c(Purple)).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Foreground(c(Cyan)).Bold(true)
	t.StatusBar = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Foreground(c(TextSecondary)).
		Padding(0, 1)
	t.StatusOK = lipgloss.NewStyle().Foreground(c(Emerald))
	t.StatusBusy = lipgloss.NewStyle().Foreground(c(Amber))
	t.StatusError = lipgloss.NewStyle().Foreground(c(Rose)).Bold(true)
	t.Confirm = lipgloss.NewStyle().
		Foreground(c(Rose)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c(Rose)).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(c(Cyan)).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(c(TextMuted))
	t.Spinner = lipgloss.NewStyle().Foreground(c(Purple))

	return t
}

// IsDark reports whether the theme is the dark scheme.
func (t *Theme) IsDark() bool {
	return t.Mode != storage.ThemeLight
}

// LineSpinner is an ASCII spinner for terminals without braille glyphs.
var LineSpinner = spinner.Spinner{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    spinner.Line.FPS,
}
