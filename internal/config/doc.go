// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the studychat configuration.
//
// # Configuration Precedence
//
//   - Command-line flags (applied by the cli package)
//   - Environment variables (STUDYCHAT_*)
//   - ~/.studychat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	url := cfg.Server.URL
//
// Watch re-reads the file whenever it changes on disk so a running TUI can
// pick up a new theme or default level.
package config
