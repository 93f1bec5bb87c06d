// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the study chat TUI.

Colors are declared once as Lip Gloss AdaptiveColor pairs. Unlike terminal
background detection, the study chat theme is a persisted user preference, so
NewTheme resolves every pair to the side matching a storage.ThemeMode:

	theme := styles.NewTheme(storage.ThemeLight)
	header := theme.Header.Render("Photosynthesis")

DetectMode turns the configured "auto", "dark" or "light" name into a mode,
falling back to the terminal background for "auto".
*/
package styles
