// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// sortRank orders roles for the tie-break when two messages share a
// creation timestamp: a user message always sorts before the assistant
// placeholder created in the same instant.
func (r Role) sortRank() int {
	switch r {
	case RoleSystem:
		return 0
	case RoleUser:
		return 1
	case RoleAssistant:
		return 2
	default:
		return 3
	}
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the lifecycle state of a message. The server also emits
// "queued" ahead of "pending"; the client accepts it and treats it exactly
// like pending.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResponding Status = "responding"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further status or content mutation may occur,
// short of an authoritative full-message replace.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Streaming reports whether content may still be appended to a message in
// this state.
func (s Status) Streaming() bool {
	switch s {
	case StatusQueued, StatusPending, StatusInProgress, StatusResponding:
		return true
	}
	return false
}

// rank positions a status on the forward-only state machine:
//
//	pending -> in_progress -> responding -> terminal
//
// queued is pending-equivalent. Terminal states share the highest rank so
// no event can move a message between them (only an authoritative replace
// may, as a last-write-wins overwrite).
func (s Status) rank() int {
	switch s {
	case StatusQueued, StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusResponding:
		return 2
	case StatusCompleted, StatusFailed, StatusCancelled:
		return 3
	default:
		return 0
	}
}

// CanAdvanceTo reports whether a status update event may move a message
// from s to next. Regressions are rejected; terminal states accept nothing.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// =============================================================================
// CITATION TYPE
// =============================================================================

// Citation references a contract section from assistant text. Begin/end
// pages are optional: a citation without a known page renders as plain text
// and never becomes a navigation target.
type Citation struct {
	SectionID     string  `json:"section_id"`
	SectionNumber string  `json:"section_number"`
	SectionName   *string `json:"section_name,omitempty"`
	BegPage       *int    `json:"beg_page,omitempty"`
	EndPage       *int    `json:"end_page,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one turn in a thread, mirrored into client state by stream
// events. Content is mutable while the message is streaming and frozen once
// a terminal status is reached.
type Message struct {
	ID                  string  `json:"id"`
	ChatThreadID        string  `json:"chat_thread_id"`
	ParentChatMessageID *string `json:"parent_chat_message_id,omitempty"`
	Status              Status  `json:"status"`
	Role                Role    `json:"role"`
	Content             string  `json:"content"`

	Citations   []Citation     `json:"citations,omitempty"`
	Attachments AttachmentList `json:"attachments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Activity holds auxiliary run events (tool calls, reasoning summaries)
	// surfaced alongside this message. Transient UI information: it is never
	// re-fetched from the server after a reload.
	Activity []ActivityNote `json:"activity,omitempty"`
}

// ActivityNote is a display-only record of an auxiliary run event.
type ActivityNote struct {
	Kind   string `json:"kind"` // "tool_call", "tool_call_output", "reasoning_summary", "todo_list_update"
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

// Clone returns a deep copy of the message. The store hands clones to
// readers so a later mutation can never alias rendered state.
func (m *Message) Clone() *Message {
	c := *m
	if m.ParentChatMessageID != nil {
		parent := *m.ParentChatMessageID
		c.ParentChatMessageID = &parent
	}
	c.Citations = append([]Citation(nil), m.Citations...)
	c.Attachments = append(AttachmentList(nil), m.Attachments...)
	c.Activity = append([]ActivityNote(nil), m.Activity...)
	return &c
}

// ResponseCitations returns the citations attached to this message, checking
// both the direct citation list (contract chat) and a response_citations
// attachment (agent chat).
func (m *Message) ResponseCitations() []Citation {
	if len(m.Citations) > 0 {
		return m.Citations
	}
	for _, att := range m.Attachments {
		if rc, ok := att.(*ResponseCitationsAttachment); ok {
			return rc.Citations
		}
	}
	return nil
}

// Preview returns a single-line truncated preview of the message content.
func (m *Message) Preview(maxRunes int) string {
	content := strings.ReplaceAll(m.Content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// Less is the store's ordering predicate: creation time first, then role
// (user before assistant), then identifier, so ordering is deterministic
// even when a user message and its assistant placeholder share a timestamp.
func (m *Message) Less(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	if m.Role != other.Role {
		return m.Role.sortRank() < other.Role.sortRank()
	}
	return m.ID < other.ID
}

// =============================================================================
// THREAD TYPE
// =============================================================================

// Thread is a single ongoing conversation scoped to one contract. At most
// one non-archived thread exists per contract; starting a new chat archives
// the prior one. Agent threads additionally carry the server-side
// conversation identifier.
type Thread struct {
	ID             string    `json:"id"`
	ContractID     string    `json:"contract_id"`
	Archived       bool      `json:"archived"`
	ConversationID string    `json:"openai_conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
