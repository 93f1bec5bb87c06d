// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the session directory cache.
//
// The Directory mirrors the server's session list and owns the locally
// known active session id. The list is replaced wholesale on every refresh;
// the server is authoritative for which sessions exist and in what order.
//
// # Key Types
//
//   - Directory: Cached list plus active id, persisted through storage.Pointers
//   - Lister: The backend call that returns the full list
//   - Snapshot: Versioned copy handed to the render callback
//
// # Usage
//
//	dir := session.NewDirectory(client, storage.NewPointers(store))
//	if _, err := dir.Refresh(ctx); err != nil {
//	    // previous list and active id are untouched
//	}
//	active, ok := dir.FindActive()
//
// # Staleness
//
// Refreshes are numbered when issued. A result that lands after a newer
// refresh has already been applied is dropped. A refresh issued before the
// active id last changed never corrects that id, so a slow list cannot
// undo a session that was created or switched to after it started.
package session
