// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/storage"
)

// fakeLister returns queued responses; when gate is set each call blocks
// until a value is sent on it.
type fakeLister struct {
	mu    sync.Mutex
	list  []model.Session
	err   error
	calls int
	gate  chan struct{}
}

func (f *fakeLister) ListSessions(ctx context.Context) ([]model.Session, error) {
	f.mu.Lock()
	f.calls++
	list, err, gate := f.list, f.err, f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return list, err
}

func (f *fakeLister) set(list []model.Session, err error) {
	f.mu.Lock()
	f.list, f.err = list, err
	f.mu.Unlock()
}

func sessions(ids ...string) []model.Session {
	out := make([]model.Session, len(ids))
	for i, id := range ids {
		out[i] = model.Session{ID: model.SessionID(id), Title: "T" + id}
	}
	return out
}

// =============================================================================
// REFRESH TESTS
// =============================================================================

func TestRefresh_AdoptsFirstWhenNoActive(t *testing.T) {
	store := storage.NewMemoryStore()
	lister := &fakeLister{list: sessions("9", "4")}
	d := NewDirectory(lister, storage.NewPointers(store))

	list, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, model.SessionID("9"), d.ActiveID())

	v, ok := store.Get(storage.KeyActiveSession)
	assert.True(t, ok)
	assert.Equal(t, "9", v)
}

func TestRefresh_KeepsKnownActive(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set(storage.KeyActiveSession, "4")
	d := NewDirectory(&fakeLister{list: sessions("9", "4")}, storage.NewPointers(store))

	_, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SessionID("4"), d.ActiveID())

	s, ok := d.FindActive()
	require.True(t, ok)
	assert.Equal(t, "T4", s.Title)
}

func TestRefresh_CorrectsStaleActive(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set(storage.KeyActiveSession, "gone")
	lister := &fakeLister{list: sessions("1", "2")}
	d := NewDirectory(lister, storage.NewPointers(store))

	_, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SessionID("1"), d.ActiveID())

	lister.set(nil, nil)
	_, err = d.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, d.ActiveID().IsZero())
	_, ok := store.Get(storage.KeyActiveSession)
	assert.False(t, ok)
}

func TestRefresh_FailureKeepsState(t *testing.T) {
	lister := &fakeLister{list: sessions("1", "2")}
	d := NewDirectory(lister, nil)
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)
	d.SetActive("2")

	boom := errors.New("connection refused")
	lister.set(nil, boom)
	_, err = d.Refresh(context.Background())
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, sessions("1", "2"), d.Sessions())
	assert.Equal(t, model.SessionID("2"), d.ActiveID())
}

func TestRefresh_Idempotent(t *testing.T) {
	d := NewDirectory(&fakeLister{list: sessions("3", "2", "1")}, nil)

	first, err := d.Refresh(context.Background())
	require.NoError(t, err)
	second, err := d.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, model.SessionID("3"), d.ActiveID())
}

func TestRefresh_ReplacesWholesale(t *testing.T) {
	lister := &fakeLister{list: sessions("1", "2")}
	d := NewDirectory(lister, nil)
	_, _ = d.Refresh(context.Background())

	renamed := sessions("1", "2")
	renamed[1].Title = "Renamed"
	lister.set(renamed, nil)
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)

	s, ok := d.Find("2")
	require.True(t, ok)
	assert.Equal(t, "Renamed", s.Title)
}

// =============================================================================
// STALENESS TESTS
// =============================================================================

func waitForCalls(t *testing.T, f *fakeLister, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRefresh_OlderResultDiscarded(t *testing.T) {
	gate := make(chan struct{})
	lister := &fakeLister{list: sessions("old"), gate: gate}
	d := NewDirectory(lister, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Refresh(context.Background())
	}()
	waitForCalls(t, lister, 1)

	// A newer refresh completes while the first is still in flight.
	lister.mu.Lock()
	lister.gate = nil
	lister.list = sessions("new")
	lister.mu.Unlock()
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)

	close(gate)
	<-done

	assert.Equal(t, sessions("new"), d.Sessions())
	assert.Equal(t, model.SessionID("new"), d.ActiveID())
}

func TestRefresh_RequestedBeforeSetActiveDoesNotCorrect(t *testing.T) {
	gate := make(chan struct{})
	lister := &fakeLister{list: sessions("1"), gate: gate}
	d := NewDirectory(lister, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Refresh(context.Background())
	}()
	waitForCalls(t, lister, 1)

	// A session created after the refresh was issued.
	d.SetActive("2")
	close(gate)
	<-done

	assert.Equal(t, model.SessionID("2"), d.ActiveID())
	assert.Equal(t, sessions("1"), d.Sessions())

	// The next refresh is newer than the switch and may correct it.
	lister.mu.Lock()
	lister.gate = nil
	lister.mu.Unlock()
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SessionID("1"), d.ActiveID())
}

// =============================================================================
// LOOKUP TESTS
// =============================================================================

func TestFilter(t *testing.T) {
	list := []model.Session{
		{ID: "1", Title: "Cell biology", LastPreview: "mitochondria"},
		{ID: "2", Title: "Algebra", LastPreview: "quadratic formula"},
		{ID: "3", Title: "", LastPreview: "cells divide"},
	}
	d := NewDirectory(&fakeLister{list: list}, nil)
	_, _ = d.Refresh(context.Background())

	got := d.Filter("cell")
	require.Len(t, got, 2)
	assert.Equal(t, model.SessionID("1"), got[0].ID)
	assert.Equal(t, model.SessionID("3"), got[1].ID)

	assert.Len(t, d.Filter("  "), 3)
	assert.Empty(t, d.Filter("history"))
	assert.Len(t, d.Filter("session #3"), 1)
}

func TestOnChange_ReceivesSnapshots(t *testing.T) {
	d := NewDirectory(&fakeLister{list: sessions("1")}, nil)
	var snaps []Snapshot
	d.OnChange(func(s Snapshot) { snaps = append(snaps, s) })

	_, _ = d.Refresh(context.Background())
	d.ClearActive()

	require.Len(t, snaps, 2)
	assert.Equal(t, model.SessionID("1"), snaps[0].ActiveID)
	assert.True(t, snaps[1].ActiveID.IsZero())
	assert.Greater(t, snaps[1].Version, snaps[0].Version)

	_, ok := snaps[0].Active()
	assert.True(t, ok)
}
