// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "sort"

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store holds the client's view of one conversation: the current thread
// (if any) and the ordered message list. Message identifiers are unique;
// an insert for an existing id replaces in place. Ordering is recomputed
// after every mutation so readers never observe a stale order.
//
// Mutations happen only on the UI event loop (reducer or explicit user
// actions), so the store carries no locks.
type Store struct {
	contractID string
	thread     *Thread
	messages   []*Message
	byID       map[string]*Message
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*Message)}
}

// SetContractID records the contract this conversation belongs to. Chat
// init events carry only a thread id, so without this the thread adopted
// from an init would have no contract attribution and snapshots keyed on
// contract id could never match it. Survives Reset: the store is bound to
// one contract for its lifetime.
func (s *Store) SetContractID(id string) {
	s.contractID = id
}

// Thread returns the current thread, or nil when no conversation exists.
func (s *Store) Thread() *Thread {
	if s.thread == nil {
		return nil
	}
	t := *s.thread
	return &t
}

// ThreadID returns the current thread id, or "" when no conversation
// exists.
func (s *Store) ThreadID() string {
	if s.thread == nil {
		return ""
	}
	return s.thread.ID
}

// SetThread establishes thread identity if absent, filling in the store's
// contract id when the thread arrived without one. An init event arriving
// for the thread the store already tracks is a no-op.
func (s *Store) SetThread(t Thread) {
	if s.thread == nil {
		if t.ContractID == "" {
			t.ContractID = s.contractID
		}
		s.thread = &t
	}
}

// Messages returns the messages in sort order. The returned slice and its
// elements are copies; mutating them cannot corrupt store state.
func (s *Store) Messages() []*Message {
	out := make([]*Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages held.
func (s *Store) Len() int {
	return len(s.messages)
}

// Get returns a copy of the message with the given id, or nil.
func (s *Store) Get(id string) *Message {
	m, ok := s.byID[id]
	if !ok {
		return nil
	}
	return m.Clone()
}

// Reset clears the thread and all messages. Called on "new chat" after the
// prior thread has been archived.
func (s *Store) Reset() {
	s.thread = nil
	s.messages = nil
	s.byID = make(map[string]*Message)
}

// =============================================================================
// MUTATIONS (reducer entry points)
// =============================================================================

// InsertIfAbsent adds a message unless its id is already present. Returns
// true if the message was inserted. Duplicate delivery of init or
// user_message events lands here and must be idempotent.
func (s *Store) InsertIfAbsent(m Message) bool {
	if _, exists := s.byID[m.ID]; exists {
		return false
	}
	msg := m.Clone()
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg
	s.resort()
	return true
}

// Replace installs the authoritative version of a message, overriding any
// partially-accumulated streamed state. Last-write-wins: this is the only
// mutation allowed to override a terminal status. Inserts if absent.
func (s *Store) Replace(m Message) {
	msg := m.Clone()
	if existing, ok := s.byID[m.ID]; ok {
		// Keep transient activity notes across the overwrite.
		msg.Activity = append(existing.Activity, msg.Activity...)
		*existing = *msg
	} else {
		s.messages = append(s.messages, msg)
		s.byID[msg.ID] = msg
	}
	s.resort()
}

// SetStatus applies a status update to the message with the given id.
// Unknown ids are a silent no-op (the message has not materialized yet
// under at-least-once delivery). Regressions and updates to terminal
// messages are ignored.
func (s *Store) SetStatus(id string, status Status) {
	m, ok := s.byID[id]
	if !ok {
		return
	}
	if !m.Status.CanAdvanceTo(status) {
		return
	}
	m.Status = status
	s.resort()
}

// AppendContent appends streamed delta text to the message with the given
// id. Unknown ids are a silent no-op. Content is append-only while the
// message is streaming; once terminal, deltas are ignored (a stale delta
// after an authoritative replace must not corrupt final content). The first
// delta advances a pending message to in_progress.
func (s *Store) AppendContent(id, delta string) {
	m, ok := s.byID[id]
	if !ok {
		return
	}
	if !m.Status.Streaming() {
		return
	}
	m.Content += delta
	if m.Status == StatusPending || m.Status == StatusQueued {
		m.Status = StatusInProgress
	}
	s.resort()
}

// AddActivity attaches an auxiliary note to the message with the given id.
// Unknown ids are a silent no-op; notes never affect status or content.
func (s *Store) AddActivity(id string, note ActivityNote) {
	m, ok := s.byID[id]
	if !ok {
		return
	}
	m.Activity = append(m.Activity, note)
}

// Load replaces all messages from a thread-history fetch, re-sorting
// client-side regardless of server order.
func (s *Store) Load(thread Thread, messages []Message) {
	s.Reset()
	s.thread = &thread
	for _, m := range messages {
		s.InsertIfAbsent(m)
	}
}

// resort re-establishes the creation-time/role/id ordering invariant.
func (s *Store) resort() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].Less(s.messages[j])
	})
}
