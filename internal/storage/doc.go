// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persistent pointer store for studychat.
//
// The store is a tiny string key-value map that survives restarts. It holds
// two values: the active session id and the theme mode.
//
// # Key Types
//
//   - Store: get/set/clear contract; never surfaces errors to callers
//   - MemoryStore: volatile store for tests and --ephemeral runs
//   - FileStore: JSON object on disk written atomically
//   - SQLiteStore: single-table SQLite database
//   - Pointers: typed accessors for the two persisted keys
//
// # Usage
//
//	store, err := storage.Open("file", "~/.studychat/state.json")
//	ptrs := storage.NewPointers(store)
//	ptrs.SetActiveSessionID("42")
//
// # Storage Location
//
// State is stored in ~/.studychat/ by default.
package storage
