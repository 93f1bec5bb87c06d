// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"errors"
	"sync"

	"github.com/jeranaias/studychat-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrStreamInProgress is returned when a streaming message already exists.
	ErrStreamInProgress = errors.New("a streaming reply is already in progress")

	// ErrStaleHandle is returned when a handle no longer refers to the
	// trailing streaming message.
	ErrStaleHandle = errors.New("stream handle is stale")

	// ErrSessionChanged is returned by Owned when the buffer belongs to a
	// different session than the caller expected.
	ErrSessionChanged = errors.New("transcript belongs to another session")
)

// =============================================================================
// TYPES
// =============================================================================

// Handle refers to one streaming assistant message. The zero Handle is
// never valid.
type Handle struct {
	id uint64
}

// Valid reports whether the handle was ever issued.
func (h Handle) Valid() bool {
	return h.id != 0
}

// Snapshot is an immutable copy of the buffer contents.
type Snapshot struct {
	Version   uint64
	SessionID model.SessionID
	Messages  []model.Message
	Loaded    bool
}

// Streaming reports whether the last message is still receiving chunks.
func (s Snapshot) Streaming() bool {
	n := len(s.Messages)
	return n > 0 && s.Messages[n-1].Streaming
}

// Buffer is the ordered message list for one session.
type Buffer struct {
	mu        sync.Mutex
	sessionID model.SessionID
	msgs      []model.Message
	loaded    bool

	// stream is the id of the open streaming handle, 0 when none.
	stream     uint64
	nextHandle uint64
	version    uint64

	onChange func(Snapshot)
}

// New creates an empty buffer bound to no session.
func New() *Buffer {
	return &Buffer{}
}

// OnChange registers the render callback, replacing any earlier one; nil
// clears it. It is called after every mutation, outside the buffer lock.
// The terminal UI attaches through chat.Watch.
func (b *Buffer) OnChange(fn func(Snapshot)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// =============================================================================
// READS
// =============================================================================

// Snapshot returns a copy of the current contents.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Buffer) snapshotLocked() Snapshot {
	msgs := make([]model.Message, len(b.msgs))
	copy(msgs, b.msgs)
	return Snapshot{
		Version:   b.version,
		SessionID: b.sessionID,
		Messages:  msgs,
		Loaded:    b.loaded,
	}
}

// SessionID returns the session the buffer currently belongs to.
func (b *Buffer) SessionID() model.SessionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// Loaded reports whether history has been loaded since the last Reset.
func (b *Buffer) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Len returns the number of messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

// HasAssistantReply reports whether any finalized assistant message exists.
func (b *Buffer) HasAssistantReply() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return (&Tx{b: b}).HasAssistantReply()
}

// Streaming reports whether a streaming message is open.
func (b *Buffer) Streaming() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stream != 0
}

// Text returns the transcript as "User: ..." / "Assistant: ..." paragraphs.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.FormatTranscript(b.msgs)
}

// =============================================================================
// WHOLESALE REPLACEMENT
// =============================================================================

// Reset empties the buffer and binds it to sessionID. Any open stream
// handle becomes stale.
func (b *Buffer) Reset(sessionID model.SessionID) {
	b.mu.Lock()
	b.sessionID = sessionID
	b.msgs = nil
	b.loaded = false
	b.stream = 0
	b.version++
	snap, fn := b.snapshotLocked(), b.onChange
	b.mu.Unlock()
	notify(fn, snap)
}

// Load replaces the contents with msgs for sessionID. Streaming flags in
// msgs are cleared and any open stream handle becomes stale.
func (b *Buffer) Load(sessionID model.SessionID, msgs []model.Message) {
	b.load(sessionID, msgs, nil)
}

func (b *Buffer) load(sessionID model.SessionID, msgs []model.Message, ifVersion *uint64) bool {
	loaded := make([]model.Message, len(msgs))
	copy(loaded, msgs)
	for i := range loaded {
		loaded[i].Streaming = false
	}

	b.mu.Lock()
	if ifVersion != nil && *ifVersion != b.version {
		b.mu.Unlock()
		return false
	}
	b.sessionID = sessionID
	b.msgs = loaded
	b.loaded = true
	b.stream = 0
	b.version++
	snap, fn := b.snapshotLocked(), b.onChange
	b.mu.Unlock()
	notify(fn, snap)
	return true
}

// LoadIf loads msgs only if the buffer is still at version, so a history
// fetch cannot overwrite anything appended or reset while it was in
// flight. Returns whether the load was applied.
func (b *Buffer) LoadIf(sessionID model.SessionID, version uint64, msgs []model.Message) bool {
	return b.load(sessionID, msgs, &version)
}

// =============================================================================
// APPEND-ONLY MUTATIONS
// =============================================================================

// AppendUser appends a finalized user message.
func (b *Buffer) AppendUser(text string) {
	_ = b.mutate(func(tx *Tx) error {
		tx.AppendUser(text)
		return nil
	})
}

// AppendAssistantFinal appends a finalized assistant message.
func (b *Buffer) AppendAssistantFinal(text string) {
	_ = b.mutate(func(tx *Tx) error {
		tx.AppendAssistantFinal(text)
		return nil
	})
}

// BeginAssistantStream appends an empty streaming assistant message.
// Fails with ErrStreamInProgress if one is already open.
func (b *Buffer) BeginAssistantStream() (Handle, error) {
	var h Handle
	err := b.mutate(func(tx *Tx) error {
		var err error
		h, err = tx.BeginAssistantStream()
		return err
	})
	return h, err
}

// TrimLastAssistant removes the most recent assistant message. It is a
// no-op when none exists.
func (b *Buffer) TrimLastAssistant() {
	_ = b.mutate(func(tx *Tx) error {
		tx.TrimLastAssistant()
		return nil
	})
}

// Owned runs fn atomically if the buffer still belongs to owner. If fn
// returns an error its mutations are rolled back.
func (b *Buffer) Owned(owner model.SessionID, fn func(tx *Tx) error) error {
	return b.mutate(func(tx *Tx) error {
		if b.sessionID != owner {
			return ErrSessionChanged
		}
		return fn(tx)
	})
}

// mutate runs fn under the lock and notifies once if anything changed.
func (b *Buffer) mutate(fn func(tx *Tx) error) error {
	b.mu.Lock()
	saved := make([]model.Message, len(b.msgs))
	copy(saved, b.msgs)
	savedStream := b.stream

	tx := &Tx{b: b}
	if err := fn(tx); err != nil {
		b.msgs = saved
		b.stream = savedStream
		b.mu.Unlock()
		return err
	}
	if !tx.changed {
		b.mu.Unlock()
		return nil
	}
	b.version++
	snap, cb := b.snapshotLocked(), b.onChange
	b.mu.Unlock()
	notify(cb, snap)
	return nil
}

// =============================================================================
// STREAMING MUTATIONS
// =============================================================================

// AppendStreamChunk concatenates text onto the streaming message referenced
// by h. Returns ErrStaleHandle if h no longer refers to it.
func (b *Buffer) AppendStreamChunk(h Handle, text string) error {
	b.mu.Lock()
	if !b.liveLocked(h) {
		b.mu.Unlock()
		return ErrStaleHandle
	}
	if text == "" {
		b.mu.Unlock()
		return nil
	}
	last := &b.msgs[len(b.msgs)-1]
	last.Content += text
	b.version++
	snap, fn := b.snapshotLocked(), b.onChange
	b.mu.Unlock()
	notify(fn, snap)
	return nil
}

// FinalizeStream clears the streaming flag on the message referenced by h.
// Returns ErrStaleHandle if h no longer refers to it.
func (b *Buffer) FinalizeStream(h Handle) error {
	b.mu.Lock()
	if !b.liveLocked(h) {
		b.mu.Unlock()
		return ErrStaleHandle
	}
	b.msgs[len(b.msgs)-1].Streaming = false
	b.stream = 0
	b.version++
	snap, fn := b.snapshotLocked(), b.onChange
	b.mu.Unlock()
	notify(fn, snap)
	return nil
}

// DiscardStream removes the streaming message referenced by h. Used when a
// stream fails before producing any content.
func (b *Buffer) DiscardStream(h Handle) error {
	b.mu.Lock()
	if !b.liveLocked(h) {
		b.mu.Unlock()
		return ErrStaleHandle
	}
	b.msgs = b.msgs[:len(b.msgs)-1]
	b.stream = 0
	b.version++
	snap, fn := b.snapshotLocked(), b.onChange
	b.mu.Unlock()
	notify(fn, snap)
	return nil
}

// Live reports whether h still refers to the trailing streaming message.
func (b *Buffer) Live(h Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liveLocked(h)
}

func (b *Buffer) liveLocked(h Handle) bool {
	if h.id == 0 || h.id != b.stream || len(b.msgs) == 0 {
		return false
	}
	last := b.msgs[len(b.msgs)-1]
	return last.Streaming && last.Role == model.RoleAssistant
}

func notify(fn func(Snapshot), snap Snapshot) {
	if fn != nil {
		fn(snap)
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Tx exposes buffer mutations inside Owned. It must not be retained after
// the callback returns.
type Tx struct {
	b       *Buffer
	changed bool
}

// SessionID returns the session the buffer belongs to.
func (tx *Tx) SessionID() model.SessionID {
	return tx.b.sessionID
}

// AppendUser appends a finalized user message.
func (tx *Tx) AppendUser(text string) {
	tx.b.msgs = append(tx.b.msgs, model.NewUserMessage(text))
	tx.changed = true
}

// AppendAssistantFinal appends a finalized assistant message.
func (tx *Tx) AppendAssistantFinal(text string) {
	tx.b.msgs = append(tx.b.msgs, model.NewAssistantMessage(text))
	tx.changed = true
}

// BeginAssistantStream appends an empty streaming assistant message.
func (tx *Tx) BeginAssistantStream() (Handle, error) {
	if tx.b.stream != 0 {
		return Handle{}, ErrStreamInProgress
	}
	tx.b.nextHandle++
	h := Handle{id: tx.b.nextHandle}
	tx.b.stream = h.id
	tx.b.msgs = append(tx.b.msgs, model.Message{Role: model.RoleAssistant, Streaming: true})
	tx.changed = true
	return h, nil
}

// TrimLastAssistant removes the most recent assistant message, scanning
// from the end. Trimming an open streaming message closes its handle.
func (tx *Tx) TrimLastAssistant() {
	msgs := tx.b.msgs
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != model.RoleAssistant {
			continue
		}
		if msgs[i].Streaming {
			tx.b.stream = 0
		}
		tx.b.msgs = append(msgs[:i:i], msgs[i+1:]...)
		tx.changed = true
		return
	}
}

// HasAssistantReply reports whether any finalized assistant message exists.
func (tx *Tx) HasAssistantReply() bool {
	for i := len(tx.b.msgs) - 1; i >= 0; i-- {
		m := tx.b.msgs[i]
		if m.Role == model.RoleAssistant && !m.Streaming {
			return true
		}
	}
	return false
}
