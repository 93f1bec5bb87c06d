// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller orchestrates user actions against the session
// directory, the transcript buffer and the stream engine.
//
// Each exported action (Init, SwitchSession, CreateSession, Send,
// Regenerate, Rename, Delete and the export helpers) runs its steps in
// order and leaves the buffer, the directory and the persisted active id
// consistent with each other. Actions may overlap: a history load that
// resolves after a later switch is dropped instead of applied, and a new
// send or switch stops any stream still writing to the buffer.
//
// Network calls are made without holding the controller lock. Callbacks
// registered on the buffer, directory or status must not call back into
// the controller synchronously.
//
// # Errors
//
//   - *ValidationError: rejected input, no state change, no network call
//   - *MissingResourceError: a required collaborator was not supplied
//   - *backend.TransportError: server or network failure; cached state kept
//
// Every recoverable failure is also reported through the status line as
// "Error: <message>".
package controller
