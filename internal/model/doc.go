// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for study sessions and messages.
//
// This package defines the core domain types shared by the backend client,
// the session directory, the transcript buffer and the UI.
//
// # Key Types
//
//   - SessionID: Canonical, string-comparable session identifier
//   - Session: Immutable snapshot of one server-side conversation thread
//   - Message: Single transcript entry with role, content and streaming flag
//   - Level: Proficiency level sent with every chat request
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
// Ids arrive from the server as JSON numbers or strings and always compare
// as strings once decoded:
//
//	var s model.Session
//	_ = json.Unmarshal([]byte(`{"id": 42, "title": "Algebra"}`), &s)
//	s.ID == model.SessionID("42") // true
package model
