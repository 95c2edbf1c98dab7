// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"strings"

	"github.com/etlundquist/ironbad-tui/internal/sse"
)

// =============================================================================
// EVENT REDUCER
// =============================================================================

// Logger is the minimal logging surface the reducer needs. *log.Logger
// satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Reducer applies decoded stream events to a Store. It performs no I/O and
// never reorders events: frames are applied strictly in the order they were
// decoded. A payload that fails to decode is logged and dropped, matching
// the decoder's treatment of malformed records.
type Reducer struct {
	store *Store
	log   Logger
}

// NewReducer creates a reducer over the given store. logger may be nil.
func NewReducer(store *Store, logger Logger) *Reducer {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Reducer{store: store, log: logger}
}

// Apply dispatches one event to the store. Unknown event names are ignored:
// the backend may grow its vocabulary ahead of the client.
func (r *Reducer) Apply(ev sse.Event) {
	switch ev.Name {
	case EventInit:
		var p InitPayload
		if !r.decode(ev, &p) {
			return
		}
		// The init payload carries only the thread id; the store fills in
		// the contract id it was bound to.
		r.store.SetThread(Thread{ID: p.ChatThreadID})
		r.store.InsertIfAbsent(p.UserMessage)
		r.store.InsertIfAbsent(p.AssistantMessage)

	case EventRunCreated:
		var p RunCreatedPayload
		if !r.decode(ev, &p) {
			return
		}
		r.store.SetThread(p.ChatThread)
		r.store.InsertIfAbsent(p.UserMessage)
		r.store.InsertIfAbsent(p.AssistantMessage)

	case EventUserMessage:
		var m Message
		if !r.decode(ev, &m) {
			return
		}
		r.store.InsertIfAbsent(m)

	case EventAssistantMessage:
		var m Message
		if !r.decode(ev, &m) {
			return
		}
		r.store.Replace(m)

	case EventRunCompleted, EventRunFailed, EventRunCancelled:
		var p RunResultPayload
		if !r.decode(ev, &p) {
			return
		}
		r.store.Replace(p.AssistantMessage)

	case EventMessageStatusUpdate:
		var p StatusUpdatePayload
		if !r.decode(ev, &p) {
			return
		}
		r.store.SetStatus(p.ChatMessageID, p.Status)

	case EventMessageTokenDelta:
		var p TokenDeltaPayload
		if !r.decode(ev, &p) {
			return
		}
		r.store.AppendContent(p.ChatMessageID, p.Delta)

	case EventToolCall:
		var p ToolCallPayload
		if !r.decode(ev, &p) {
			return
		}
		r.store.AddActivity(p.ChatMessageID, ActivityNote{
			Kind:   EventToolCall,
			Label:  p.ToolName,
			Detail: formatToolArgs(p.ToolCallArgs),
		})

	case EventToolCallOutput:
		var p ToolCallOutputPayload
		if !r.decode(ev, &p) {
			return
		}
		r.store.AddActivity(p.ChatMessageID, ActivityNote{
			Kind:   EventToolCallOutput,
			Label:  "tool output",
			Detail: p.ToolCallOutput,
		})

	case EventReasoningSummary:
		var p ReasoningSummaryPayload
		if !r.decode(ev, &p) {
			return
		}
		r.store.AddActivity(p.ChatMessageID, ActivityNote{
			Kind:   EventReasoningSummary,
			Label:  "reasoning",
			Detail: p.ReasoningSummary,
		})

	case EventTodoListUpdate:
		var p TodoListUpdatePayload
		if !r.decode(ev, &p) {
			return
		}
		r.store.AddActivity(p.ChatMessageID, ActivityNote{
			Kind:   EventTodoListUpdate,
			Label:  "plan",
			Detail: formatTodos(p.Todos),
		})

	default:
		r.log.Printf("chat: ignoring unrecognized event %q", ev.Name)
	}
}

// decode unmarshals an event payload, logging and dropping on failure.
func (r *Reducer) decode(ev sse.Event, v any) bool {
	if err := json.Unmarshal(ev.Data, v); err != nil {
		r.log.Printf("chat: dropping %q event with bad payload: %v", ev.Name, err)
		return false
	}
	return true
}

// formatToolArgs renders tool call arguments compactly for display.
func formatToolArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(data)
}

// formatTodos renders the agent plan as one line per item.
func formatTodos(todos []TodoItem) string {
	var sb strings.Builder
	for i, todo := range todos {
		if i > 0 {
			sb.WriteString("\n")
		}
		marker := "[ ]"
		switch todo.Status {
		case "in_progress":
			marker = "[~]"
		case "completed":
			marker = "[x]"
		case "cancelled":
			marker = "[-]"
		}
		sb.WriteString(marker + " " + todo.Content)
	}
	return sb.String()
}
