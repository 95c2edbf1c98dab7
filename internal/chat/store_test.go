// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func userMsg(id string, at time.Time) Message {
	return Message{
		ID:           id,
		ChatThreadID: "t1",
		Status:       StatusCompleted,
		Role:         RoleUser,
		Content:      "question",
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func assistantMsg(id string, at time.Time) Message {
	return Message{
		ID:           id,
		ChatThreadID: "t1",
		Status:       StatusPending,
		Role:         RoleAssistant,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func TestStoreInsertIfAbsentIsIdempotent(t *testing.T) {
	s := NewStore()

	if !s.InsertIfAbsent(userMsg("m1", baseTime)) {
		t.Fatal("first insert should succeed")
	}

	dup := userMsg("m1", baseTime)
	dup.Content = "changed"
	if s.InsertIfAbsent(dup) {
		t.Error("duplicate insert should be a no-op")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 message, got %d", s.Len())
	}
	if got := s.Get("m1").Content; got != "question" {
		t.Errorf("duplicate insert mutated content: %q", got)
	}
}

// Two messages with the same created_at must sort user-first regardless of
// insertion order.
func TestStoreTimestampTieUserSortsFirst(t *testing.T) {
	for name, ids := range map[string][2]string{
		"assistant inserted first": {"b-assistant", "a-user"},
		"user inserted first":      {"a-user", "b-assistant"},
	} {
		t.Run(name, func(t *testing.T) {
			s := NewStore()
			for _, id := range ids {
				if id == "a-user" {
					s.InsertIfAbsent(userMsg(id, baseTime))
				} else {
					s.InsertIfAbsent(assistantMsg(id, baseTime))
				}
			}

			msgs := s.Messages()
			if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
				t.Errorf("order = %s, %s; want user, assistant", msgs[0].Role, msgs[1].Role)
			}
		})
	}
}

func TestStoreTimestampTieSameRoleSortsByID(t *testing.T) {
	s := NewStore()
	s.InsertIfAbsent(userMsg("zz", baseTime))
	s.InsertIfAbsent(userMsg("aa", baseTime))

	msgs := s.Messages()
	if msgs[0].ID != "aa" || msgs[1].ID != "zz" {
		t.Errorf("order = %s, %s; want aa, zz", msgs[0].ID, msgs[1].ID)
	}
}

func TestStoreOrderRecomputedAfterMutation(t *testing.T) {
	s := NewStore()
	s.InsertIfAbsent(userMsg("m1", baseTime.Add(2*time.Second)))
	s.InsertIfAbsent(userMsg("m2", baseTime))

	msgs := s.Messages()
	if msgs[0].ID != "m2" {
		t.Errorf("expected earlier message first, got %s", msgs[0].ID)
	}

	// An authoritative replace that changes created_at must re-sort.
	updated := userMsg("m1", baseTime.Add(-time.Second))
	s.Replace(updated)
	msgs = s.Messages()
	if msgs[0].ID != "m1" {
		t.Errorf("expected re-sorted order after replace, got %s first", msgs[0].ID)
	}
}

func TestStoreStatusForwardOnly(t *testing.T) {
	s := NewStore()
	s.InsertIfAbsent(assistantMsg("a1", baseTime))

	s.SetStatus("a1", StatusInProgress)
	if got := s.Get("a1").Status; got != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", got)
	}

	// Regression ignored.
	s.SetStatus("a1", StatusPending)
	if got := s.Get("a1").Status; got != StatusInProgress {
		t.Errorf("status regressed to %s", got)
	}

	s.SetStatus("a1", StatusResponding)
	s.SetStatus("a1", StatusCompleted)

	// Terminal: no further status event may mutate it.
	s.SetStatus("a1", StatusFailed)
	if got := s.Get("a1").Status; got != StatusCompleted {
		t.Errorf("terminal status mutated to %s", got)
	}
}

func TestStoreSetStatusUnknownIDIsNoOp(t *testing.T) {
	s := NewStore()
	s.SetStatus("ghost", StatusCompleted)
	if s.Len() != 0 {
		t.Error("status update materialized a message")
	}
}

func TestStoreAppendContentAdvancesPendingOnce(t *testing.T) {
	s := NewStore()
	s.InsertIfAbsent(assistantMsg("a1", baseTime))

	transitions := 0
	last := s.Get("a1").Status
	for _, delta := range []string{"Hel", "lo", " world"} {
		s.AppendContent("a1", delta)
		if cur := s.Get("a1").Status; cur != last {
			transitions++
			last = cur
		}
	}

	m := s.Get("a1")
	if m.Content != "Hello world" {
		t.Errorf("content = %q, want %q", m.Content, "Hello world")
	}
	if m.Status != StatusInProgress {
		t.Errorf("status = %s, want in_progress", m.Status)
	}
	if transitions != 1 {
		t.Errorf("expected exactly one status transition, got %d", transitions)
	}
}

func TestStoreAppendContentIgnoredAfterTerminal(t *testing.T) {
	s := NewStore()
	s.InsertIfAbsent(assistantMsg("a1", baseTime))
	s.AppendContent("a1", "partial")
	s.SetStatus("a1", StatusCompleted)

	s.AppendContent("a1", " stale-delta")
	if got := s.Get("a1").Content; got != "partial" {
		t.Errorf("terminal content mutated: %q", got)
	}
}

func TestStoreReplaceOverridesStreamedContent(t *testing.T) {
	s := NewStore()
	s.InsertIfAbsent(assistantMsg("a1", baseTime))
	s.AppendContent("a1", "Hel")
	s.AppendContent("a1", "lo")

	final := assistantMsg("a1", baseTime)
	final.Status = StatusCompleted
	final.Content = "Hello world, verbatim."
	s.Replace(final)

	m := s.Get("a1")
	if m.Content != "Hello world, verbatim." {
		t.Errorf("replace did not override streamed content: %q", m.Content)
	}
	if m.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", m.Status)
	}
	if s.Len() != 1 {
		t.Errorf("replace duplicated the message: %d entries", s.Len())
	}
}

func TestStoreReplaceOverridesTerminal(t *testing.T) {
	s := NewStore()
	failed := assistantMsg("a1", baseTime)
	failed.Status = StatusFailed
	failed.Content = "There was an error generating the response. Please try again."
	s.InsertIfAbsent(failed)

	// A later authoritative replace is a corrective overwrite.
	corrected := assistantMsg("a1", baseTime)
	corrected.Status = StatusCompleted
	corrected.Content = "recovered"
	s.Replace(corrected)

	if got := s.Get("a1"); got.Status != StatusCompleted || got.Content != "recovered" {
		t.Errorf("corrective replace rejected: %s %q", got.Status, got.Content)
	}
}

func TestStoreReset(t *testing.T) {
	s := NewStore()
	s.SetThread(Thread{ID: "t1", ContractID: "c1"})
	s.InsertIfAbsent(userMsg("m1", baseTime))

	s.Reset()
	if s.Thread() != nil {
		t.Error("thread survived reset")
	}
	if s.Len() != 0 {
		t.Error("messages survived reset")
	}
}

func TestStoreLoadResorts(t *testing.T) {
	s := NewStore()
	s.Load(Thread{ID: "t1"}, []Message{
		userMsg("m3", baseTime.Add(2*time.Second)),
		userMsg("m1", baseTime),
		userMsg("m2", baseTime.Add(time.Second)),
	})

	msgs := s.Messages()
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" || msgs[2].ID != "m3" {
		t.Errorf("load did not re-sort: %s %s %s", msgs[0].ID, msgs[1].ID, msgs[2].ID)
	}
}

func TestStoreReadersGetCopies(t *testing.T) {
	s := NewStore()
	s.InsertIfAbsent(userMsg("m1", baseTime))

	snapshot := s.Get("m1")
	snapshot.Content = "mutated by reader"
	if got := s.Get("m1").Content; got != "question" {
		t.Errorf("reader mutation leaked into store: %q", got)
	}
}

func TestStatusQueuedBehavesLikePending(t *testing.T) {
	s := NewStore()
	m := assistantMsg("a1", baseTime)
	m.Status = StatusQueued
	s.InsertIfAbsent(m)

	s.AppendContent("a1", "x")
	if got := s.Get("a1").Status; got != StatusInProgress {
		t.Errorf("queued message did not advance on first delta: %s", got)
	}
}

func TestStoreSetThreadFillsContractID(t *testing.T) {
	s := NewStore()
	s.SetContractID("c-1")

	// Chat init events seed the thread with only its id.
	s.SetThread(Thread{ID: "t1"})
	if got := s.Thread().ContractID; got != "c-1" {
		t.Errorf("ContractID = %q, want c-1", got)
	}

	// A thread that already knows its contract keeps it.
	s.Reset()
	s.SetThread(Thread{ID: "t2", ContractID: "c-other"})
	if got := s.Thread().ContractID; got != "c-other" {
		t.Errorf("ContractID = %q, want c-other", got)
	}

	// The binding survives Reset for the next conversation.
	s.Reset()
	s.SetThread(Thread{ID: "t3"})
	if got := s.Thread().ContractID; got != "c-1" {
		t.Errorf("ContractID after Reset = %q, want c-1", got)
	}
}
