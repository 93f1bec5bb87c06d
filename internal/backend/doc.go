// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the study chat server.
//
// The server exposes session CRUD, chat completion (single response and
// event-stream), regeneration of the last reply and PDF export under
// /api/sessions. Every failure surfaces as a *TransportError carrying the
// server's {"error": "..."} message when one was sent.
//
// # Key Types
//
//   - Client: Thread-safe API client with rate limiting and request ids
//   - ChunkStream: Pull-based reader over an event-stream response body
//   - TransportError: Categorized network/server failure
//
// # Usage
//
//	client := backend.NewClientWithConfig(&backend.Config{BaseURL: "http://127.0.0.1:8000"})
//	sessions, err := client.ListSessions(ctx)
//
//	stream, err := client.OpenChatStream(ctx, id, "Hello", model.LevelBeginner)
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// # Stream Framing
//
// Each chunk returned by ChunkStream is one event block with its "data:"
// prefixes left in place; stripping them is the consumer's job. Event,
// id, retry and comment lines are dropped. A "[DONE]" payload ends the
// stream and an "error" event becomes a TransportError.
package backend
