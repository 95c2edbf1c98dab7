// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	conv "github.com/etlundquist/ironbad-tui/internal/chat"
	"github.com/etlundquist/ironbad-tui/internal/sse"
	"github.com/etlundquist/ironbad-tui/internal/storage"
)

var errTest = errors.New("stream read failed")

func testReplSession() *replSession {
	store := conv.NewStore()
	store.SetContractID("c-1")
	return &replSession{
		store:      store,
		reducer:    conv.NewReducer(store, nil),
		contractID: "c-1",
		mode:       "chat",
		width:      80,
	}
}

func replEvent(t *testing.T, name string, payload any) sse.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", name, err)
	}
	return sse.Event{Name: name, Data: data}
}

func replInitEvent(t *testing.T) sse.Event {
	return replEvent(t, conv.EventInit, conv.InitPayload{
		ChatThreadID: "t-1",
		UserMessage: conv.Message{
			ID: "u-1", ChatThreadID: "t-1",
			Role: conv.RoleUser, Status: conv.StatusCompleted,
			Content: "What is the liability cap?",
		},
		AssistantMessage: conv.Message{
			ID: "a-1", ChatThreadID: "t-1",
			Role: conv.RoleAssistant, Status: conv.StatusPending,
		},
	})
}

func TestConsumeStreamAppliesBufferedTailAfterClose(t *testing.T) {
	s := testReplSession()

	// The pump delivers all events before Closed, so by the time the REPL
	// wakes up both channels can be ready at once. Pre-buffering everything
	// models the worst case: the close must not win over the tail.
	sink := newReplSink()
	sink.events <- replInitEvent(t)
	sink.events <- replEvent(t, conv.EventMessageTokenDelta, conv.TokenDeltaPayload{
		ChatThreadID: "t-1", ChatMessageID: "a-1", Delta: "partial",
	})
	sink.events <- replEvent(t, conv.EventAssistantMessage, conv.Message{
		ID: "a-1", ChatThreadID: "t-1",
		Role: conv.RoleAssistant, Status: conv.StatusCompleted,
		Content: "The cap is 12 months of fees.",
	})
	sink.done <- nil

	assistantID := s.consumeStream(sink)
	if assistantID != "a-1" {
		t.Fatalf("assistantID = %q, want a-1", assistantID)
	}

	msg := s.store.Get("a-1")
	if msg == nil {
		t.Fatal("assistant message missing from store")
	}
	if msg.Status != conv.StatusCompleted {
		t.Errorf("status = %v, want completed", msg.Status)
	}
	if msg.Content != "The cap is 12 months of fees." {
		t.Errorf("authoritative content lost: %q", msg.Content)
	}
}

func TestConsumeStreamSurfacesCloseErrorAfterPartial(t *testing.T) {
	s := testReplSession()

	sink := newReplSink()
	sink.events <- replInitEvent(t)
	sink.events <- replEvent(t, conv.EventMessageTokenDelta, conv.TokenDeltaPayload{
		ChatThreadID: "t-1", ChatMessageID: "a-1", Delta: "partial",
	})
	sink.done <- errTest

	assistantID := s.consumeStream(sink)
	if assistantID != "a-1" {
		t.Fatalf("assistantID = %q, want a-1", assistantID)
	}

	msg := s.store.Get("a-1")
	if msg == nil || msg.Content != "partial" {
		t.Fatalf("partial transcript lost: %+v", msg)
	}
	if msg.Status != conv.StatusInProgress {
		t.Errorf("status = %v, want in_progress", msg.Status)
	}
}

func TestConsumeStreamFillsThreadContractID(t *testing.T) {
	s := testReplSession()

	sink := newReplSink()
	sink.events <- replInitEvent(t)
	sink.done <- nil
	s.consumeStream(sink)

	thread := s.store.Thread()
	if thread == nil {
		t.Fatal("no thread after init")
	}
	if thread.ContractID != "c-1" {
		t.Errorf("thread.ContractID = %q, want c-1 (snapshots key on it)", thread.ContractID)
	}
}

func TestExportSnapshotWritesMarkdown(t *testing.T) {
	dir := t.TempDir()
	snapshots, err := storage.NewThreadStore(filepath.Join(dir, "threads"))
	if err != nil {
		t.Fatalf("NewThreadStore() error = %v", err)
	}
	thread := conv.Thread{ID: "t-1", ContractID: "c-1"}
	messages := []conv.Message{
		{ID: "u-1", ChatThreadID: "t-1", Role: conv.RoleUser, Status: conv.StatusCompleted, Content: "What is the liability cap?"},
		{ID: "a-1", ChatThreadID: "t-1", Role: conv.RoleAssistant, Status: conv.StatusCompleted, Content: "The cap is 12 months of fees."},
	}
	if err := snapshots.Save(thread, messages); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s := testReplSession()
	s.snapshots = snapshots

	path, err := s.exportSnapshot(dir, "t-1")
	if err != nil {
		t.Fatalf("exportSnapshot() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q) error = %v", path, err)
	}
	if !strings.Contains(string(data), "The cap is 12 months of fees.") {
		t.Errorf("exported markdown missing assistant content:\n%s", data)
	}

	if _, err := s.exportSnapshot(dir, "t-missing"); !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Errorf("exportSnapshot(missing) error = %v, want ErrSnapshotNotFound", err)
	}
}
