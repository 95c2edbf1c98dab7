// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// Wire event payloads for the chat and agent streams. Field names mirror
// the backend schemas exactly; the two streams share the status-update and
// token-delta shapes.

// Event names emitted on the contract chat stream.
const (
	EventInit                = "init"
	EventUserMessage         = "user_message"
	EventAssistantMessage    = "assistant_message"
	EventMessageStatusUpdate = "message_status_update"
	EventMessageTokenDelta   = "message_token_delta"
)

// Additional event names emitted on the agent run stream.
const (
	EventRunCreated       = "run_created"
	EventRunCompleted     = "run_completed"
	EventRunFailed        = "run_failed"
	EventRunCancelled     = "run_cancelled"
	EventToolCall         = "tool_call"
	EventToolCallOutput   = "tool_call_output"
	EventReasoningSummary = "reasoning_summary"
	EventTodoListUpdate   = "todo_list_update"
)

// InitPayload establishes thread identity and delivers the user message and
// assistant placeholder at the start of a chat stream.
type InitPayload struct {
	ChatThreadID     string  `json:"chat_thread_id"`
	UserMessage      Message `json:"user_message"`
	AssistantMessage Message `json:"assistant_message"`
}

// RunCreatedPayload is the agent-stream equivalent of InitPayload, carrying
// the full thread object.
type RunCreatedPayload struct {
	ChatThread       Thread  `json:"chat_thread"`
	UserMessage      Message `json:"user_message"`
	AssistantMessage Message `json:"assistant_message"`
}

// StatusUpdatePayload replaces one message's status.
type StatusUpdatePayload struct {
	ChatThreadID  string `json:"chat_thread_id"`
	ChatMessageID string `json:"chat_message_id"`
	Status        Status `json:"status"`
}

// TokenDeltaPayload appends the next fragment of streamed content.
type TokenDeltaPayload struct {
	ChatThreadID  string `json:"chat_thread_id"`
	ChatMessageID string `json:"chat_message_id"`
	Delta         string `json:"delta"`
}

// RunResultPayload carries the authoritative final assistant message for
// run_completed, run_failed, and run_cancelled.
type RunResultPayload struct {
	AssistantMessage Message `json:"assistant_message"`
}

// ToolCallPayload announces a tool invocation during an agent run.
type ToolCallPayload struct {
	ChatThreadID  string         `json:"chat_thread_id"`
	ChatMessageID string         `json:"chat_message_id"`
	ToolName      string         `json:"tool_name"`
	ToolCallID    string         `json:"tool_call_id"`
	ToolCallArgs  map[string]any `json:"tool_call_args"`
}

// ToolCallOutputPayload delivers the output of a prior tool call.
type ToolCallOutputPayload struct {
	ChatThreadID   string `json:"chat_thread_id"`
	ChatMessageID  string `json:"chat_message_id"`
	ToolCallID     string `json:"tool_call_id"`
	ToolCallOutput string `json:"tool_call_output"`
}

// ReasoningSummaryPayload carries a summary of the agent's reasoning.
type ReasoningSummaryPayload struct {
	ChatThreadID     string `json:"chat_thread_id"`
	ChatMessageID    string `json:"chat_message_id"`
	ReasoningID      string `json:"reasoning_id"`
	ReasoningSummary string `json:"reasoning_summary"`
}

// TodoItem is one entry of the agent's working plan.
type TodoItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Status  string `json:"status"` // pending, in_progress, completed, cancelled
}

// TodoListUpdatePayload replaces the agent's working plan display.
type TodoListUpdatePayload struct {
	ChatThreadID  string     `json:"chat_thread_id"`
	ChatMessageID string     `json:"chat_message_id"`
	Todos         []TodoItem `json:"todos"`
}
