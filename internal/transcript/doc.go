// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the in-memory message list for the active session.
//
// The buffer contains at most one streaming assistant message, always last.
// Writers hold a Handle obtained from BeginAssistantStream; once the buffer
// is reset, reloaded or the stream is finalized, the handle goes stale and
// further appends through it are rejected with ErrStaleHandle instead of
// leaking into another session's transcript.
//
// Every mutation bumps a version and invokes the change callback with a
// Snapshot. Callbacks may arrive from different goroutines; consumers keep
// the snapshot with the highest Version.
//
// # Usage
//
//	buf := transcript.New()
//	buf.Reset("42")
//	var h transcript.Handle
//	err := buf.Owned("42", func(tx *transcript.Tx) error {
//	    tx.AppendUser("Hello")
//	    var err error
//	    h, err = tx.BeginAssistantStream()
//	    return err
//	})
//	buf.AppendStreamChunk(h, "Hi")
//	buf.FinalizeStream(h)
package transcript
