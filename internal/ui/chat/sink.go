// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/etlundquist/ironbad-tui/internal/sse"
)

// =============================================================================
// PROGRAM SINK
// =============================================================================

// programSink bridges the session pump goroutine into the Bubble Tea loop:
// stream callbacks become tea messages posted through Program.Send. The
// send function is attached after the program is constructed, so delivery
// is guarded; events arriving before attachment are dropped (the only such
// window is before Run, when no stream can be active).
type programSink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func newProgramSink() *programSink {
	return &programSink{}
}

// attach sets the delivery function, normally tea.Program.Send.
func (s *programSink) attach(send func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = send
}

func (s *programSink) post(msg tea.Msg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// Event implements session.Sink.
func (s *programSink) Event(ev sse.Event) {
	s.post(StreamEventMsg{Event: ev})
}

// Closed implements session.Sink.
func (s *programSink) Closed(err error) {
	s.post(StreamClosedMsg{Err: err})
}
