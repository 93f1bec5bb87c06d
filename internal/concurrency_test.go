// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Race detection tests for studychat.
//
// Run with: go test -race -v ./internal/...
//
// The access patterns match the TUI: the render loop reads snapshots while
// a stream goroutine writes chunks, the config watcher swaps the global
// config, and user actions move the active session.
package internal

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/studychat-tui/internal/config"
	"github.com/jeranaias/studychat-tui/internal/model"
	"github.com/jeranaias/studychat-tui/internal/session"
	"github.com/jeranaias/studychat-tui/internal/storage"
	"github.com/jeranaias/studychat-tui/internal/stream"
	"github.com/jeranaias/studychat-tui/internal/transcript"
)

// =============================================================================
// TEST CONFIGURATION
// =============================================================================

const (
	// Number of concurrent goroutines for race tests
	raceConcurrency = 100
	// Number of iterations per goroutine
	raceIterations = 50
	// Timeout for race tests
	raceTimeout = 30 * time.Second
)

// =============================================================================
// CONFIG CONCURRENCY TESTS
// =============================================================================

// TestConcurrency_ConfigGlobalAccess reads the global config while other
// goroutines replace it, as the file watcher does.
func TestConcurrency_ConfigGlobalAccess(t *testing.T) {
	t.Setenv("STUDYCHAT_HOME", t.TempDir())
	config.ResetGlobalForTesting()
	defer config.ResetGlobalForTesting()

	ctx, cancel := context.WithTimeout(context.Background(), raceTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < raceIterations; j++ {
				if ctx.Err() != nil {
					return
				}
				cfg := config.Global()
				if cfg == nil {
					t.Error("Global returned nil")
					return
				}
				_ = cfg.Server.URL
				_ = cfg.Chat.DefaultLevel
				_ = cfg.UI.Theme
			}
		}()
	}

	for i := 0; i < raceConcurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < raceIterations/10; j++ {
				if ctx.Err() != nil {
					return
				}
				next := config.Default()
				next.Server.URL = fmt.Sprintf("http://127.0.0.1:%d", 8000+idx)
				next.Chat.StreamReplies = idx%2 == 0
				config.SetGlobal(next)
			}
		}(i)
	}

	wg.Wait()
}

// TestConcurrency_ConfigReload reloads from disk while readers run.
func TestConcurrency_ConfigReload(t *testing.T) {
	t.Setenv("STUDYCHAT_HOME", t.TempDir())
	config.ResetGlobalForTesting()
	defer config.ResetGlobalForTesting()

	ctx, cancel := context.WithTimeout(context.Background(), raceTimeout)
	defer cancel()

	var wg sync.WaitGroup
	var reloadCount int64

	for i := 0; i < raceConcurrency/2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < raceIterations/5; j++ {
				if ctx.Err() != nil {
					return
				}
				_ = config.ReloadGlobal() // missing file falls back to defaults
				atomic.AddInt64(&reloadCount, 1)
			}
		}()
	}

	for i := 0; i < raceConcurrency/2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < raceIterations; j++ {
				if ctx.Err() != nil {
					return
				}
				_ = config.Global()
			}
		}()
	}

	wg.Wait()
	t.Logf("Completed %d concurrent reloads", atomic.LoadInt64(&reloadCount))
}

// TestConcurrency_ConfigGetSet edits private clones and publishes them,
// the way "config set" followed by a reload reaches a running chat.
func TestConcurrency_ConfigGetSet(t *testing.T) {
	t.Setenv("STUDYCHAT_HOME", t.TempDir())
	config.ResetGlobalForTesting()
	defer config.ResetGlobalForTesting()
	config.SetGlobal(config.Default())

	ctx, cancel := context.WithTimeout(context.Background(), raceTimeout)
	defer cancel()

	keys := []string{
		"server.url",
		"chat.default_level",
		"chat.stream_replies",
		"ui.theme",
	}

	var wg sync.WaitGroup
	for i := 0; i < raceConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < raceIterations; j++ {
				if ctx.Err() != nil {
					return
				}
				cfg := config.Global()
				for _, key := range keys {
					if _, err := cfg.Get(key); err != nil {
						t.Errorf("Get(%q): %v", key, err)
						return
					}
				}
			}
		}()
	}

	levels := []string{"beginner", "intermediate", "advanced"}
	for i := 0; i < raceConcurrency/5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < raceIterations/5; j++ {
				if ctx.Err() != nil {
					return
				}
				next := config.Global().Clone()
				_ = next.Set("chat.default_level", levels[(idx+j)%len(levels)])
				_ = next.Set("chat.stream_replies", "false")
				config.SetGlobal(next)
			}
		}(i)
	}

	wg.Wait()
}

// =============================================================================
// TRANSCRIPT CONCURRENCY TESTS
// =============================================================================

// gatedSource yields chunks one at a time from a channel.
type gatedSource struct {
	chunks <-chan string
}

func (s *gatedSource) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case c, ok := <-s.chunks:
		if !ok {
			return "", io.EOF
		}
		return c, nil
	}
}

func (s *gatedSource) Close() error { return nil }

type gatedOpener struct {
	chunks <-chan string
}

func (o gatedOpener) OpenChatStream(ctx context.Context, id model.SessionID, text string, level model.Level) (stream.Source, error) {
	return &gatedSource{chunks: o.chunks}, nil
}

func (o gatedOpener) OpenRegenerateStream(ctx context.Context, id model.SessionID, level model.Level) (stream.Source, error) {
	return &gatedSource{chunks: o.chunks}, nil
}

// TestConcurrency_TranscriptSnapshotDuringStream renders snapshots while
// the engine appends chunks. Every snapshot must be internally consistent.
func TestConcurrency_TranscriptSnapshotDuringStream(t *testing.T) {
	const sid = model.SessionID("7")
	buf := transcript.New()
	buf.Load(sid, nil)

	chunks := make(chan string)
	engine := stream.NewEngine(buf, gatedOpener{chunks: chunks})

	var notified atomic.Int64
	buf.OnChange(func(transcript.Snapshot) { notified.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), raceTimeout)
	defer cancel()

	done := make(chan stream.Result, 1)
	go func() {
		done <- engine.Run(ctx, stream.Request{SessionID: sid, Text: "Why is the sky blue?", Level: model.LevelBeginner})
	}()

	var readers sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < raceConcurrency/4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			var last uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := buf.Snapshot()
				if snap.Version < last {
					t.Errorf("version went backwards: %d after %d", snap.Version, last)
					return
				}
				last = snap.Version
				for k, m := range snap.Messages {
					if m.Streaming && k != len(snap.Messages)-1 {
						t.Errorf("streaming message at %d of %d", k, len(snap.Messages))
						return
					}
				}
				_ = buf.Text()
			}
		}()
	}

	want := ""
	for i := 0; i < raceIterations; i++ {
		word := fmt.Sprintf("w%d ", i)
		want += word
		chunks <- "data: " + word
	}
	close(chunks)

	res := <-done
	close(stop)
	readers.Wait()

	if res.Err != nil || res.Stale {
		t.Fatalf("Run = %+v", res)
	}
	snap := buf.Snapshot()
	if snap.Streaming() {
		t.Fatal("still streaming after Run returned")
	}
	if n := len(snap.Messages); n != 2 || snap.Messages[1].Content != want {
		t.Fatalf("messages = %+v", snap.Messages)
	}
	if notified.Load() < int64(raceIterations) {
		t.Errorf("OnChange fired %d times, want at least %d", notified.Load(), raceIterations)
	}
}

// TestConcurrency_TranscriptResetDuringStream switches sessions while a
// stream is writing. No chunk may land in the new session.
func TestConcurrency_TranscriptResetDuringStream(t *testing.T) {
	buf := transcript.New()
	buf.Load("1", nil)

	chunks := make(chan string)
	engine := stream.NewEngine(buf, gatedOpener{chunks: chunks})

	ctx, cancel := context.WithTimeout(context.Background(), raceTimeout)
	defer cancel()

	done := make(chan stream.Result, 1)
	go func() {
		done <- engine.Run(ctx, stream.Request{SessionID: "1", Text: "first"})
	}()

	chunks <- "data: before "
	buf.Load("2", []model.Message{model.NewUserMessage("other session")})

	// The engine notices the stale handle on its next chunk.
	go func() {
		for i := 0; i < raceIterations; i++ {
			select {
			case chunks <- "data: after ":
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case res := <-done:
		if !res.Stale {
			t.Errorf("Run = %+v, want stale", res)
		}
	case <-ctx.Done():
		t.Fatal("Run did not return after session switch")
	}

	snap := buf.Snapshot()
	if snap.SessionID != "2" || len(snap.Messages) != 1 || snap.Messages[0].Content != "other session" {
		t.Fatalf("session 2 transcript changed: %+v", snap)
	}
}

// =============================================================================
// SESSION DIRECTORY CONCURRENCY TESTS
// =============================================================================

type countingLister struct {
	calls atomic.Int64
}

func (l *countingLister) ListSessions(ctx context.Context) ([]model.Session, error) {
	n := l.calls.Add(1)
	list := []model.Session{{ID: "1", Title: "Algebra"}, {ID: "2", Title: "Chemistry"}}
	if n%3 == 0 {
		list = append(list, model.Session{ID: "3", Title: "History"})
	}
	return list, nil
}

// TestConcurrency_DirectoryRefreshAndSwitch refreshes, switches and reads
// the directory from many goroutines.
func TestConcurrency_DirectoryRefreshAndSwitch(t *testing.T) {
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ptrs := storage.NewPointers(store)
	lister := &countingLister{}
	dir := session.NewDirectory(lister, ptrs)

	ctx, cancel := context.WithTimeout(context.Background(), raceTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < raceConcurrency/4; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < raceIterations/5; j++ {
				if _, err := dir.Refresh(ctx); err != nil {
					t.Errorf("Refresh: %v", err)
					return
				}
			}
		}()
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < raceIterations/5; j++ {
				dir.SetActive(model.SessionID(fmt.Sprint(1 + (idx+j)%2)))
				_ = ptrs.ToggleTheme()
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < raceIterations; j++ {
				snap := dir.Snapshot()
				_, _ = snap.Active()
				_ = dir.Filter("chem")
			}
		}()
	}
	wg.Wait()

	if _, err := dir.Refresh(ctx); err != nil {
		t.Fatalf("final Refresh: %v", err)
	}
	active := dir.ActiveID()
	if _, ok := dir.Find(active); !ok {
		t.Errorf("active %q not in the list after refresh", active)
	}
	if ptrs.ActiveSessionID() != active {
		t.Errorf("persisted %q, directory %q", ptrs.ActiveSessionID(), active)
	}
}
