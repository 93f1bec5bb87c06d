// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant Markdown into display output.
//
// Terminal output goes through glamour. HTML output is produced by
// goldmark with GitHub-flavored extensions, fenced code highlighted by
// chroma using CSS classes, and the result sanitized by bluemonday so
// model output can never inject script.
//
// User messages and replies still streaming are shown literally.
package render
