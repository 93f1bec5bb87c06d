// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	// Messaging
	Submit     key.Binding
	Regenerate key.Binding
	Cancel     key.Binding

	// Sessions
	NewSession key.Binding
	Rename     key.Binding
	Delete     key.Binding
	Focus      key.Binding
	Up         key.Binding
	Down       key.Binding
	Search     key.Binding

	// Transcript
	PageUp     key.Binding
	PageDown   key.Binding
	ExportPDF  key.Binding
	ExportText key.Binding
	Copy       key.Binding

	// Preferences
	Theme  key.Binding
	Level  key.Binding
	Stream key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat interface.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send / open"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "regenerate"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "stop reply / back"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		Rename: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "rename"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "delete"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "sessions / input"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous session"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next session"),
		),
		Search: key.NewBinding(
			key.WithKeys("ctrl+f", "/"),
			key.WithHelp("C-f or /", "filter sessions"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		ExportPDF: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "export PDF"),
		),
		ExportText: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "save markdown"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy chat"),
		),
		Theme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "dark/light"),
		),
		Level: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "cycle level"),
		),
		Stream: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "streaming on/off"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// =============================================================================
// KEY BINDING HELPERS
// =============================================================================

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Focus, k.NewSession, k.Help, k.Quit}
}

// FullHelp returns the bindings grouped for the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Regenerate, k.Cancel, k.PageUp, k.PageDown},
		{k.Focus, k.Up, k.Down, k.Search, k.NewSession, k.Rename, k.Delete},
		{k.ExportPDF, k.ExportText, k.Copy},
		{k.Theme, k.Level, k.Stream, k.Help, k.Quit},
	}
}
