// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/studychat-tui/internal/model"
)

// =============================================================================
// CANCEL FUNCTION MANAGEMENT (THREAD-SAFE)
// =============================================================================

// cancelManager owns the cancel function of the context every action runs
// under. It must be used as a pointer so Bubble Tea's model copies share it.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

// setCancelFunc replaces the stored cancel function, canceling the old one.
func (cm *cancelManager) setCancelFunc(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
	}
	cm.cancelFunc = fn
}

// cancel invokes the stored cancel function and clears it. Safe to call
// multiple times.
func (cm *cancelManager) cancel() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
		cm.cancelFunc = nil
	}
}

// =============================================================================
// DELETE CONFIRMATION
// =============================================================================

// ConfirmGate approves deletes the user already confirmed in the TUI. The
// model arms it after the y/n prompt; the controller consumes it.
type ConfirmGate struct {
	armed atomic.Bool
}

// Arm approves the next delete.
func (g *ConfirmGate) Arm() {
	g.armed.Store(true)
}

// Confirm consumes the approval. It matches controller.Confirmer.
func (g *ConfirmGate) Confirm(_ context.Context, _ model.Session) bool {
	return g.armed.Swap(false)
}
