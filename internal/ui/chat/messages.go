// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/etlundquist/ironbad-tui/internal/api"
	conv "github.com/etlundquist/ironbad-tui/internal/chat"
	"github.com/etlundquist/ironbad-tui/internal/sse"
	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamEventMsg delivers one server-sent event from the active stream.
// Posted by the session sink from the pump goroutine.
type StreamEventMsg struct {
	Event sse.Event
}

// StreamClosedMsg signals that the active stream ended. Err is nil for
// normal completion and for user-initiated cancellation.
type StreamClosedMsg struct {
	Err error
}

// StreamTickMsg drives throttled transcript re-renders while streaming.
type StreamTickMsg struct {
	Time time.Time
}

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// BootstrapMsg delivers the current-thread lookup done at startup.
// Thread is nil when the contract has no active thread.
type BootstrapMsg struct {
	Thread   *conv.Thread
	Messages []conv.Message
	Err      error
}

// NewChatDoneMsg reports the outcome of archiving the current thread and
// starting a fresh one.
type NewChatDoneMsg struct {
	Err error
}

// =============================================================================
// DOCUMENT PANE MESSAGES
// =============================================================================

// SectionsLoadedMsg delivers the contract sections for the document pane.
type SectionsLoadedMsg struct {
	Sections []api.Section
	Err      error
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg applies settings picked up by the config file watcher
// without restarting the program.
type ConfigReloadedMsg struct {
	Mode         string
	ShowActivity bool
	Theme        *styles.Theme
}
