// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/studychat-tui/internal/logging"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/storage"
)

// =============================================================================
// TYPES
// =============================================================================

// Lister fetches the full session list from the backend.
type Lister interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
}

// Snapshot is an immutable copy of the directory.
type Snapshot struct {
	Version  uint64
	Sessions []model.Session
	ActiveID model.SessionID
}

// Active returns the active session from the snapshot, if listed.
func (s Snapshot) Active() (model.Session, bool) {
	return find(s.Sessions, s.ActiveID)
}

// Directory caches the server's session list and the active session id.
type Directory struct {
	mu     sync.Mutex
	lister Lister
	ptrs   *storage.Pointers

	sessions []model.Session
	active   model.SessionID

	// issued numbers refresh requests; applied is the newest one whose
	// result replaced the list. activeAt is the value of issued when the
	// active id was last set by a caller.
	issued   uint64
	applied  uint64
	activeAt uint64

	version  uint64
	onChange func(Snapshot)
	log      zerolog.Logger
}

// NewDirectory creates an empty directory. The active id is read once
// from ptrs.
func NewDirectory(lister Lister, ptrs *storage.Pointers) *Directory {
	if ptrs == nil {
		ptrs = storage.NewPointers(nil)
	}
	return &Directory{
		lister: lister,
		ptrs:   ptrs,
		active: ptrs.ActiveSessionID(),
		log:    logging.For("session"),
	}
}

// OnChange registers the render callback, called outside the lock. It
// replaces any earlier callback; nil clears it.
func (d *Directory) OnChange(fn func(Snapshot)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// =============================================================================
// REFRESH
// =============================================================================

// Refresh fetches the session list and replaces the cache. On failure the
// previous list and active id are kept and the error is returned.
//
// If no active id is set the first session is adopted. An active id that
// is missing from the list is corrected to the first session, or cleared
// when the list is empty. Neither happens for a list requested before the
// active id last changed.
func (d *Directory) Refresh(ctx context.Context) ([]model.Session, error) {
	d.mu.Lock()
	d.issued++
	seq := d.issued
	d.mu.Unlock()

	list, err := d.lister.ListSessions(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("session refresh failed")
		return nil, err
	}

	d.mu.Lock()
	if seq < d.applied {
		d.log.Debug().Uint64("seq", seq).Uint64("applied", d.applied).Msg("discarding stale session list")
		out := cloneSessions(d.sessions)
		d.mu.Unlock()
		return out, nil
	}
	d.applied = seq
	d.sessions = cloneSessions(list)

	switch {
	case seq <= d.activeAt:
		// requested before the active id last changed
	case d.active.IsZero():
		if len(d.sessions) > 0 {
			d.setActiveLocked(d.sessions[0].ID)
		}
	default:
		if _, ok := find(d.sessions, d.active); !ok {
			d.log.Info().Str("stale", d.active.String()).Msg("active session no longer listed")
			if len(d.sessions) > 0 {
				d.setActiveLocked(d.sessions[0].ID)
			} else {
				d.setActiveLocked("")
			}
		}
	}

	out := cloneSessions(d.sessions)
	d.version++
	snap, fn := d.snapshotLocked(), d.onChange
	d.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return out, nil
}

// =============================================================================
// ACTIVE SESSION
// =============================================================================

// ActiveID returns the active session id, or "" if none.
func (d *Directory) ActiveID() model.SessionID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// SetActive changes the active id and persists it before returning.
func (d *Directory) SetActive(id model.SessionID) {
	d.mu.Lock()
	d.activeAt = d.issued
	d.setActiveLocked(id)
	d.version++
	snap, fn := d.snapshotLocked(), d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// ClearActive unsets the active id and removes it from storage.
func (d *Directory) ClearActive() {
	d.SetActive("")
}

// setActiveLocked updates memory and storage together. Caller holds mu.
func (d *Directory) setActiveLocked(id model.SessionID) {
	d.active = id
	d.ptrs.SetActiveSessionID(id)
}

// =============================================================================
// LOOKUPS
// =============================================================================

// FindActive returns the cached entry for the active id.
func (d *Directory) FindActive() (model.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return find(d.sessions, d.active)
}

// Find returns the cached entry for id.
func (d *Directory) Find(id model.SessionID) (model.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return find(d.sessions, id)
}

// Sessions returns a copy of the cached list.
func (d *Directory) Sessions() []model.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneSessions(d.sessions)
}

// Filter returns sessions whose title or preview contains query.
func (d *Directory) Filter(query string) []model.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return FilterSessions(d.sessions, query)
}

// Snapshot returns a copy of the directory state.
func (d *Directory) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Directory) snapshotLocked() Snapshot {
	return Snapshot{
		Version:  d.version,
		Sessions: cloneSessions(d.sessions),
		ActiveID: d.active,
	}
}

// FilterSessions returns the sessions matching query, preserving order.
func FilterSessions(sessions []model.Session, query string) []model.Session {
	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Matches(query) {
			out = append(out, s)
		}
	}
	return out
}

func find(sessions []model.Session, id model.SessionID) (model.Session, bool) {
	if id.IsZero() {
		return model.Session{}, false
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, true
		}
	}
	return model.Session{}, false
}

func cloneSessions(in []model.Session) []model.Session {
	if in == nil {
		return nil
	}
	out := make([]model.Session, len(in))
	copy(out, in)
	return out
}
