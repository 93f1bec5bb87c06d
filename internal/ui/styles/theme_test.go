// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/studychat-tui/internal/storage"
)

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewTheme_Modes(t *testing.T) {
	dark := NewTheme(storage.ThemeDark)
	if !dark.IsDark() {
		t.Error("dark theme should report IsDark")
	}
	light := NewTheme(storage.ThemeLight)
	if light.IsDark() {
		t.Error("light theme should not report IsDark")
	}
	if got := NewTheme("sepia").Mode; got != storage.ThemeDark {
		t.Errorf("unknown mode should fall back to dark, got %q", got)
	}
}

func TestNewTheme_ResolvesPalette(t *testing.T) {
	dark := NewTheme(storage.ThemeDark)
	light := NewTheme(storage.ThemeLight)

	if got := dark.HeaderTitle.GetForeground(); got != lipgloss.Color(Cyan.Dark) {
		t.Errorf("dark header title = %v, want %s", got, Cyan.Dark)
	}
	if got := light.HeaderTitle.GetForeground(); got != lipgloss.Color(Cyan.Light) {
		t.Errorf("light header title = %v, want %s", got, Cyan.Light)
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve(Rose, storage.ThemeLight); got != lipgloss.Color(Rose.Light) {
		t.Errorf("Resolve light = %v", got)
	}
	if got := Resolve(Rose, storage.ThemeDark); got != lipgloss.Color(Rose.Dark) {
		t.Errorf("Resolve dark = %v", got)
	}
}

func TestDetectMode_Explicit(t *testing.T) {
	tests := []struct {
		name string
		want storage.ThemeMode
	}{
		{"dark", storage.ThemeDark},
		{"light", storage.ThemeLight},
		{" LIGHT ", storage.ThemeLight},
	}
	for _, tt := range tests {
		if got := DetectMode(tt.name); got != tt.want {
			t.Errorf("DetectMode(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestStatusIndicators_ASCII(t *testing.T) {
	for _, s := range []string{
		StatusIndicators.Success,
		StatusIndicators.Error,
		StatusIndicators.Pending,
		StatusIndicators.Active,
	} {
		for _, r := range s {
			if r > 127 {
				t.Errorf("indicator %q is not ASCII", s)
			}
		}
	}
}
