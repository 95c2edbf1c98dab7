// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the lifecycle of streaming conversations: opening
// chat and agent streams, pumping their events to the UI, enforcing the
// one-active-stream rule, and user-initiated cancellation.
package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/etlundquist/ironbad-tui/internal/api"
	"github.com/etlundquist/ironbad-tui/internal/chat"
	"github.com/etlundquist/ironbad-tui/internal/sse"
)

// ErrStreamActive is returned by NewChat while a response is still
// streaming. Sends never return it: a new send aborts the prior stream and
// proceeds.
var ErrStreamActive = errors.New("a response is already streaming")

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Stream is one open event stream. *api.Stream satisfies it.
type Stream interface {
	Next() (sse.Event, error)
	Close() error
}

// Backend is the slice of the API client the controller needs. Narrowed to
// an interface so tests can drive the controller with scripted streams.
type Backend interface {
	OpenChatStream(ctx context.Context, req api.ChatMessageCreate) (Stream, error)
	OpenAgentStream(ctx context.Context, req api.AgentRunRequest) (Stream, error)
	GetCurrentThread(ctx context.Context, contractID string) (*chat.Thread, error)
	GetThreadMessages(ctx context.Context, contractID, threadID string) ([]chat.Message, error)
	ArchiveThread(ctx context.Context, contractID, threadID string) (*chat.Thread, error)
}

// APIBackend adapts *api.Client to the Backend interface.
type APIBackend struct {
	Client *api.Client
}

func (b APIBackend) OpenChatStream(ctx context.Context, req api.ChatMessageCreate) (Stream, error) {
	return b.Client.SendChatMessage(ctx, req)
}

func (b APIBackend) OpenAgentStream(ctx context.Context, req api.AgentRunRequest) (Stream, error) {
	return b.Client.StartAgentRun(ctx, req)
}

func (b APIBackend) GetCurrentThread(ctx context.Context, contractID string) (*chat.Thread, error) {
	return b.Client.GetCurrentThread(ctx, contractID)
}

func (b APIBackend) GetThreadMessages(ctx context.Context, contractID, threadID string) ([]chat.Message, error) {
	return b.Client.GetThreadMessages(ctx, contractID, threadID)
}

func (b APIBackend) ArchiveThread(ctx context.Context, contractID, threadID string) (*chat.Thread, error) {
	return b.Client.ArchiveThread(ctx, contractID, threadID)
}

// =============================================================================
// EVENT SINK
// =============================================================================

// Sink receives stream events on the pump goroutine. Implementations must
// hand them to the UI event loop (tea.Program.Send in the TUI) rather than
// mutate shared state directly: the reducer runs single-writer on the UI
// loop.
type Sink interface {
	// Event delivers one decoded stream event in arrival order.
	Event(ev sse.Event)

	// Closed reports the end of a stream: nil for natural completion and
	// user-initiated cancellation, non-nil exactly once when the stream
	// failed or could not be established.
	Closed(err error)
}

// =============================================================================
// CANCEL FUNCTION MANAGEMENT (THREAD-SAFE)
// =============================================================================

// cancelManager guards the active stream's cancel function. Cancel is
// called from the UI loop while pump goroutines release their slot on
// exit, so access must be synchronized. Each stream gets a generation
// number: an old pump winding down after being superseded must not clear
// the new stream's cancel function, so release is a no-op unless the
// caller still owns the slot.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	gen        uint64
}

// take claims the slot for a new stream, aborting the prior stream first
// if one is active. Returns the new stream's generation, which the pump
// passes back to release.
func (cm *cancelManager) take(fn context.CancelFunc) uint64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
	}
	cm.gen++
	cm.cancelFunc = fn
	return cm.gen
}

// cancel invokes and clears the stored cancel function. Safe to call with
// no stream active.
func (cm *cancelManager) cancel() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc == nil {
		return false
	}
	cm.cancelFunc()
	cm.cancelFunc = nil
	return true
}

// release cancels the context (if still present) and frees the slot, but
// only when gen still owns it; a superseded pump exits without touching
// the new stream's cancel function. Contexts never leak regardless of how
// the pump exits: either release cancels here, or take already did.
func (cm *cancelManager) release(gen uint64) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.gen != gen {
		return
	}
	if cm.cancelFunc != nil {
		cm.cancelFunc()
		cm.cancelFunc = nil
	}
}

// active reports whether a stream currently holds the slot.
func (cm *cancelManager) active() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.cancelFunc != nil
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Logger is the minimal logging surface the controller needs.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Controller drives streaming conversations for one contract. At most one
// stream is active at a time: SendChat and SendAgent abort the prior
// stream (its partial transcript stands, its sink sees Closed(nil)) before
// opening the new one.
type Controller struct {
	backend    Backend
	contractID string
	cancelMgr  *cancelManager
	log        Logger
}

// NewController creates a controller for one contract's conversations.
// logger may be nil.
func NewController(backend Backend, contractID string, logger Logger) *Controller {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Controller{
		backend:    backend,
		contractID: contractID,
		cancelMgr:  &cancelManager{},
		log:        logger,
	}
}

// Active reports whether a response is currently streaming.
func (c *Controller) Active() bool {
	return c.cancelMgr.active()
}

// SendChat posts a user message to the contract chat endpoint and pumps
// the response stream to the sink. threadID is nil for the first message
// of a new conversation.
func (c *Controller) SendChat(ctx context.Context, content string, threadID *string, sink Sink) error {
	req := api.ChatMessageCreate{
		ContractID:   c.contractID,
		ChatThreadID: threadID,
		Content:      content,
	}
	return c.start(ctx, sink, func(streamCtx context.Context) (Stream, error) {
		return c.backend.OpenChatStream(streamCtx, req)
	})
}

// SendAgent posts a user message to the agent run endpoint and pumps the
// run's event stream to the sink.
func (c *Controller) SendAgent(ctx context.Context, content string, threadID *string, attachments chat.AttachmentList, sink Sink) error {
	req := api.AgentRunRequest{
		ContractID:   c.contractID,
		Content:      content,
		ChatThreadID: threadID,
		Attachments:  attachments,
	}
	return c.start(ctx, sink, func(streamCtx context.Context) (Stream, error) {
		return c.backend.OpenAgentStream(streamCtx, req)
	})
}

// start claims the stream slot, aborting any stream still holding it, and
// launches the pump goroutine. The slot is released on every exit path, so
// a failed establishment never wedges the controller.
func (c *Controller) start(ctx context.Context, sink Sink, open func(context.Context) (Stream, error)) error {
	streamCtx, cancel := context.WithCancel(ctx)
	gen := c.cancelMgr.take(cancel)

	go c.pump(streamCtx, gen, sink, open)
	return nil
}

// Cancel aborts the active stream. A cancelled stream reports Closed(nil):
// the user asked for the abort, so it is not an error. No-op when nothing
// is streaming.
func (c *Controller) Cancel() {
	if c.cancelMgr.cancel() {
		c.log.Printf("session: stream cancelled by user")
	}
}

// pump reads the stream to completion and forwards every event to the
// sink. Runs on its own goroutine; the sink is responsible for crossing
// back onto the UI loop.
func (c *Controller) pump(ctx context.Context, gen uint64, sink Sink, open func(context.Context) (Stream, error)) {
	stream, err := open(ctx)
	if err != nil {
		aborted := ctx.Err() != nil
		c.cancelMgr.release(gen)
		if aborted {
			sink.Closed(nil)
			return
		}
		c.log.Printf("session: stream establishment failed: %v", err)
		sink.Closed(err)
		return
	}

	for {
		ev, err := stream.Next()
		if err != nil {
			aborted := ctx.Err() != nil
			// Release the connection and the stream slot before signalling
			// closure, so a sink reacting to Closed sees an idle controller.
			stream.Close()
			c.cancelMgr.release(gen)
			switch {
			case errors.Is(err, io.EOF):
				sink.Closed(nil)
			case aborted:
				// User abort: the partial transcript stands as-is.
				sink.Closed(nil)
			default:
				c.log.Printf("session: stream read failed: %v", err)
				sink.Closed(err)
			}
			return
		}
		sink.Event(ev)
	}
}

// =============================================================================
// THREAD LIFECYCLE
// =============================================================================

// Bootstrap loads the contract's current conversation, if any. Returns
// (nil, nil, nil) when no thread exists yet: first use of a contract is
// not an error.
func (c *Controller) Bootstrap(ctx context.Context) (*chat.Thread, []chat.Message, error) {
	thread, err := c.backend.GetCurrentThread(ctx, c.contractID)
	if err != nil {
		if errors.Is(err, api.ErrNoCurrentThread) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	messages, err := c.backend.GetThreadMessages(ctx, c.contractID, thread.ID)
	if err != nil {
		return nil, nil, err
	}
	return thread, messages, nil
}

// NewChat archives the current thread server-side so the next send starts
// a fresh conversation. Archiving is a precondition: on failure the local
// conversation is left untouched and the error is surfaced. Rejected while
// a response is streaming.
func (c *Controller) NewChat(ctx context.Context, threadID string) error {
	if c.Active() {
		return ErrStreamActive
	}
	if _, err := c.backend.ArchiveThread(ctx, c.contractID, threadID); err != nil {
		return err
	}
	return nil
}
