// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream feeds an incremental reply from the server into the
// transcript buffer.
//
// The Engine prepares the buffer (user message or regenerate trim, then an
// empty streaming placeholder), opens the stream, and applies chunks one at
// a time after stripping their "data:" framing. Before every append it
// checks that its handle is still live; a session switch or a newer send
// makes the handle stale and the engine stops without touching the buffer
// again.
//
// On a transport error or cancellation the partial reply is kept and
// finalized. A stream that fails before any chunk arrives drops its empty
// placeholder.
//
// # Usage
//
//	eng := stream.NewEngine(buf, stream.BackendOpener(client))
//	res := eng.Run(ctx, stream.Request{SessionID: id, Text: "Hello", Level: model.LevelBeginner})
//	if res.Err != nil && !res.Stale {
//	    status = "Error: " + res.Err.Error()
//	}
package stream
