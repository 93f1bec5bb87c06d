// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes study transcripts to local files and the clipboard.
//
// # Formats
//
//   - markdown: YAML frontmatter plus one section per message
//   - html: standalone page, replies rendered and code highlighted
//   - json / yaml: machine-readable document
//   - text: "User: ..." / "Assistant: ..." paragraphs
//
// PDF export is produced by the server; SavePDF only stores the bytes.
//
// # Usage
//
//	t := &export.Transcript{Session: s, Messages: msgs}
//	path, err := export.ExportToFile(t, "markdown", export.DefaultOptions())
package export
