// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide zerolog logger.
//
// The TUI owns the terminal, so interactive runs send logs to a file while
// plain mode and one-shot commands write to stderr. Components obtain a
// tagged child logger with For:
//
//	log := logging.For("session")
//	log.Warn().Err(err).Msg("refresh failed")
package logging
