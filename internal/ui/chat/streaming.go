// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view.
//
// This file implements the streaming render throttle. Token deltas mutate
// the conversation store immediately, but re-rendering the transcript on
// every delta would redraw hundreds of times per second during fast
// streams. The RenderGate coalesces store mutations into at most maxFPS
// transcript refreshes, driven by tick messages.
package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// RENDER GATE
// =============================================================================

// RenderGate coalesces streaming mutations into frame-capped renders.
// MarkDirty is called for every applied event; TryRender answers at most
// once per frame interval while dirty.
//
// Thread-safety: events are applied in the Bubble Tea loop, but the gate is
// also consulted from View, so all operations take the mutex.
type RenderGate struct {
	mu          sync.Mutex
	dirty       bool
	lastRender  time.Time
	minInterval time.Duration
}

// NewRenderGate creates a gate capped at maxFPS frames per second.
// Out-of-range values fall back to 30fps.
func NewRenderGate(maxFPS int) *RenderGate {
	if maxFPS <= 0 || maxFPS > 120 {
		maxFPS = 30
	}
	return &RenderGate{
		minInterval: time.Second / time.Duration(maxFPS),
	}
}

// MarkDirty records that store state changed since the last render.
func (g *RenderGate) MarkDirty() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = true
}

// Dirty reports whether a render is pending.
func (g *RenderGate) Dirty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dirty
}

// TryRender returns true when a render should happen now: state is dirty
// and at least one frame interval has passed. On true the gate resets.
func (g *RenderGate) TryRender() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.dirty {
		return false
	}
	if time.Since(g.lastRender) < g.minInterval {
		return false
	}
	g.dirty = false
	g.lastRender = time.Now()
	return true
}

// ForceRender consumes any pending dirty state regardless of the frame
// interval. Used when a stream closes so the final tokens always land.
func (g *RenderGate) ForceRender() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	wasDirty := g.dirty
	g.dirty = false
	g.lastRender = time.Now()
	return wasDirty
}

// Interval returns the configured minimum time between renders.
func (g *RenderGate) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.minInterval
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd schedules the next throttled render pass.
func streamTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
