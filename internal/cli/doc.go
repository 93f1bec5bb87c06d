// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the studychat command line built on cobra.
//
// The root command opens the chat: the full-screen Bubble Tea UI when stdin
// and stdout are terminals, otherwise a line-oriented prompt that also
// reads piped input. Both drive the same controller.
//
// # Commands
//
//   - (root): interactive chat (--plain forces the line prompt)
//   - sessions: list sessions (--json for scripts)
//   - export: write a session as markdown, html, json, yaml, text or pdf
//   - config: show, get, set, keys and path
//   - version: build information
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute())
//	}
//
// Errors are displayed once by Execute and mapped to exit codes by
// GetExitCode.
package cli
