// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/etlundquist/ironbad-tui/internal/api"
	conv "github.com/etlundquist/ironbad-tui/internal/chat"
	"github.com/etlundquist/ironbad-tui/internal/session"
	"github.com/etlundquist/ironbad-tui/internal/sse"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSession struct {
	chatSent  []string
	agentSent []string
	cancels   int
	newChats  []string

	sendErr      error
	newChatErr   error
	bootThread   *conv.Thread
	bootMessages []conv.Message
	bootErr      error
}

func (f *fakeSession) Active() bool { return false }

func (f *fakeSession) SendChat(_ context.Context, content string, _ *string, _ session.Sink) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.chatSent = append(f.chatSent, content)
	return nil
}

func (f *fakeSession) SendAgent(_ context.Context, content string, _ *string, _ conv.AttachmentList, _ session.Sink) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.agentSent = append(f.agentSent, content)
	return nil
}

func (f *fakeSession) Cancel() { f.cancels++ }

func (f *fakeSession) Bootstrap(context.Context) (*conv.Thread, []conv.Message, error) {
	return f.bootThread, f.bootMessages, f.bootErr
}

func (f *fakeSession) NewChat(_ context.Context, threadID string) error {
	if f.newChatErr != nil {
		return f.newChatErr
	}
	f.newChats = append(f.newChats, threadID)
	return nil
}

type fakeSnapshots struct {
	saved []string
	err   error
}

func (f *fakeSnapshots) Save(thread conv.Thread, _ []conv.Message) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, thread.ID)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func testContract() *api.Contract {
	return &api.Contract{ID: "c-1"}
}

func readyModel(t *testing.T, fs *fakeSession) *Model {
	t.Helper()
	m := New(Config{
		Contract: testContract(),
		Session:  fs,
		Mode:     "chat",
		MaxFPS:   30,
	})
	m.resize(100, 40)
	mm, _ := m.Update(BootstrapMsg{Thread: fs.bootThread, Messages: fs.bootMessages, Err: fs.bootErr})
	return mm.(*Model)
}

func mkEvent(t *testing.T, name string, payload any) sse.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return sse.Event{Name: name, Data: data}
}

func initEvent(t *testing.T) sse.Event {
	t.Helper()
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	return mkEvent(t, conv.EventInit, conv.InitPayload{
		ChatThreadID: "t-1",
		UserMessage: conv.Message{
			ID: "u-1", ChatThreadID: "t-1", Role: conv.RoleUser,
			Status: conv.StatusCompleted, Content: "What is the liability cap?",
			CreatedAt: now,
		},
		AssistantMessage: conv.Message{
			ID: "a-1", ChatThreadID: "t-1", Role: conv.RoleAssistant,
			Status: conv.StatusPending, CreatedAt: now,
		},
	})
}

func deltaEvent(t *testing.T, text string) sse.Event {
	t.Helper()
	return mkEvent(t, conv.EventMessageTokenDelta, conv.TokenDeltaPayload{
		ChatThreadID: "t-1", ChatMessageID: "a-1", Delta: text,
	})
}

// =============================================================================
// TESTS
// =============================================================================

func TestSubmitSendsThroughChatMode(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)

	m.input.SetValue("  What is the term?  ")
	mm, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mm.(*Model)

	if len(fs.chatSent) != 1 || fs.chatSent[0] != "What is the term?" {
		t.Fatalf("expected trimmed content sent, got %v", fs.chatSent)
	}
	if m.state != StateStreaming {
		t.Errorf("expected streaming state after submit, got %v", m.state)
	}
	if m.input.Value() != "" {
		t.Error("input should reset after submit")
	}
}

func TestSubmitUsesAgentMode(t *testing.T) {
	fs := &fakeSession{}
	m := New(Config{Contract: testContract(), Session: fs, Mode: "agent", MaxFPS: 30})
	m.resize(100, 40)
	mm, _ := m.Update(BootstrapMsg{})
	m = mm.(*Model)

	m.input.SetValue("Review the indemnity clause")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if len(fs.agentSent) != 1 {
		t.Fatalf("expected agent send, got chat=%v agent=%v", fs.chatSent, fs.agentSent)
	}
}

func TestSubmitIgnoredWhileNotReady(t *testing.T) {
	fs := &fakeSession{}
	m := New(Config{Contract: testContract(), Session: fs, MaxFPS: 30})
	// Still loading: no bootstrap applied.
	m.input.SetValue("hello")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(fs.chatSent) != 0 {
		t.Error("submit should be ignored while loading")
	}
}

func TestSubmitEmptyIgnored(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)
	m.input.SetValue("   ")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(fs.chatSent) != 0 {
		t.Error("blank input should not be sent")
	}
}

func TestSubmitErrorShowsBanner(t *testing.T) {
	fs := &fakeSession{sendErr: session.ErrStreamActive}
	m := readyModel(t, fs)
	m.input.SetValue("question")
	mm, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mm.(*Model)

	if !m.errBanner.Visible() {
		t.Error("send failure should raise the error banner")
	}
	if m.state == StateStreaming {
		t.Error("failed send must not enter streaming state")
	}
}

func TestStreamEventsReachStore(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)

	mm, _ := m.Update(StreamEventMsg{Event: initEvent(t)})
	m = mm.(*Model)
	mm, _ = m.Update(StreamEventMsg{Event: deltaEvent(t, "The cap is ")})
	m = mm.(*Model)
	mm, _ = m.Update(StreamEventMsg{Event: deltaEvent(t, "12 months of fees.")})
	m = mm.(*Model)

	got := m.store.Get("a-1")
	if got == nil {
		t.Fatal("assistant message missing from store")
	}
	if got.Content != "The cap is 12 months of fees." {
		t.Errorf("unexpected accumulated content %q", got.Content)
	}
	if m.state != StateStreaming {
		t.Error("events should put the model in streaming state")
	}
	if m.store.ThreadID() != "t-1" {
		t.Errorf("thread id not adopted, got %q", m.store.ThreadID())
	}
	// The init payload has no contract id; the store fills in the model's
	// contract so snapshots stay attributable.
	if thread := m.store.Thread(); thread == nil || thread.ContractID != "c-1" {
		t.Errorf("thread contract id = %+v, want c-1", thread)
	}
}

func TestStreamClosedReturnsToReady(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)

	mm, _ := m.Update(StreamEventMsg{Event: initEvent(t)})
	m = mm.(*Model)
	mm, _ = m.Update(StreamClosedMsg{})
	m = mm.(*Model)

	if m.state != StateReady {
		t.Errorf("expected ready state after close, got %v", m.state)
	}
	if m.errBanner.Visible() {
		t.Error("clean close should not raise the banner")
	}
	if m.spinner.Active() {
		t.Error("spinner should stop on close")
	}
}

func TestStreamClosedWithErrorShowsBanner(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)

	mm, _ := m.Update(StreamEventMsg{Event: initEvent(t)})
	m = mm.(*Model)
	mm, _ = m.Update(StreamClosedMsg{Err: errors.New("stream read: connection reset")})
	m = mm.(*Model)

	if !m.errBanner.Visible() {
		t.Error("stream failure should raise the banner")
	}
	// Partial transcript stays intact.
	if m.store.Get("a-1") == nil {
		t.Error("partial assistant message should survive a failed stream")
	}
}

func TestEscCancelsActiveStream(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)

	mm, _ := m.Update(StreamEventMsg{Event: initEvent(t)})
	m = mm.(*Model)
	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = mm.(*Model)

	if fs.cancels != 1 {
		t.Fatalf("expected one cancel, got %d", fs.cancels)
	}
	// State flips to ready only when the pump reports closure.
	if m.state != StateStreaming {
		t.Error("state should remain streaming until StreamClosedMsg")
	}
}

func TestEscDismissesBannerWhenIdle(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)
	m.errBanner.Show(errors.New("old failure"))

	mm, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = mm.(*Model)
	if m.errBanner.Visible() {
		t.Error("esc should dismiss the banner when no stream is active")
	}
}

func TestNewChatSnapshotsThenArchives(t *testing.T) {
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	fs := &fakeSession{
		bootThread: &conv.Thread{ID: "t-1", ContractID: "c-1"},
		bootMessages: []conv.Message{
			{ID: "u-1", ChatThreadID: "t-1", Role: conv.RoleUser, Status: conv.StatusCompleted, Content: "hi", CreatedAt: now},
		},
	}
	snaps := &fakeSnapshots{}
	m := New(Config{Contract: testContract(), Session: fs, Snapshots: snaps, MaxFPS: 30})
	m.resize(100, 40)
	mm, _ := m.Update(BootstrapMsg{Thread: fs.bootThread, Messages: fs.bootMessages})
	m = mm.(*Model)

	mm, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m = mm.(*Model)
	if cmd == nil {
		t.Fatal("ctrl+n should produce a command")
	}
	if len(snaps.saved) != 1 || snaps.saved[0] != "t-1" {
		t.Fatalf("expected snapshot of t-1 before archive, got %v", snaps.saved)
	}

	mm, _ = m.Update(cmd())
	m = mm.(*Model)
	if len(fs.newChats) != 1 || fs.newChats[0] != "t-1" {
		t.Fatalf("expected archive of t-1, got %v", fs.newChats)
	}
	if m.store.Len() != 0 || m.store.ThreadID() != "" {
		t.Error("store should reset after successful archive")
	}
}

func TestNewChatArchiveFailureKeepsState(t *testing.T) {
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	fs := &fakeSession{
		bootThread: &conv.Thread{ID: "t-1", ContractID: "c-1"},
		bootMessages: []conv.Message{
			{ID: "u-1", ChatThreadID: "t-1", Role: conv.RoleUser, Status: conv.StatusCompleted, Content: "hi", CreatedAt: now},
		},
		newChatErr: errors.New("server unavailable"),
	}
	m := readyModel(t, fs)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	if cmd == nil {
		t.Fatal("ctrl+n should produce a command")
	}
	mm, _ := m.Update(cmd())
	m = mm.(*Model)

	if !m.errBanner.Visible() {
		t.Error("archive failure should raise the banner")
	}
	if m.store.Len() == 0 || m.store.ThreadID() != "t-1" {
		t.Error("store must keep the live thread when archive fails")
	}
}

func TestNewChatNoThreadIsNoop(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	if cmd != nil {
		t.Error("ctrl+n with no thread should be a no-op")
	}
}

func TestNewChatBlockedWhileStreaming(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)
	mm, _ := m.Update(StreamEventMsg{Event: initEvent(t)})
	m = mm.(*Model)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	if cmd != nil {
		t.Error("new chat should be blocked while streaming")
	}
}

func TestBootstrapErrorShowsBanner(t *testing.T) {
	fs := &fakeSession{bootErr: errors.New("connection refused")}
	m := New(Config{Contract: testContract(), Session: fs, MaxFPS: 30})
	m.resize(100, 40)
	mm, _ := m.Update(BootstrapMsg{Err: fs.bootErr})
	m = mm.(*Model)

	if !m.errBanner.Visible() {
		t.Error("bootstrap failure should raise the banner")
	}
	if m.state != StateReady {
		t.Error("model should still accept input after a failed bootstrap")
	}
}

func TestStreamTickStopsWhenIdle(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)

	mm, _ := m.Update(StreamEventMsg{Event: initEvent(t)})
	m = mm.(*Model)
	mm, _ = m.Update(StreamClosedMsg{})
	m = mm.(*Model)

	_, cmd := m.Update(StreamTickMsg{Time: time.Now()})
	if cmd != nil {
		t.Error("ticker should stop once the stream is closed and state is clean")
	}
}

func TestDocumentPaneToggleAndSections(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)

	name := "Indemnification"
	sections := []api.Section{
		{ID: "s-1", ContractID: "c-1", Number: "3", Name: &name, Markdown: "# 3", BegPage: 12, EndPage: 18},
	}
	mm, _ := m.Update(SectionsLoadedMsg{Sections: sections})
	m = mm.(*Model)

	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	m = mm.(*Model)
	if !m.docPane.Visible() {
		t.Fatal("ctrl+d should open the document pane")
	}
	if !strings.Contains(m.View(), "§ 3") {
		t.Error("document pane should render the section header")
	}

	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	m = mm.(*Model)
	if m.docPane.Visible() {
		t.Error("second ctrl+d should close the pane")
	}
}

func TestCitationJumpOpensPane(t *testing.T) {
	fs := &fakeSession{}
	m := readyModel(t, fs)

	name := "Indemnification by Vendor"
	page := 14
	mm, _ := m.Update(SectionsLoadedMsg{Sections: []api.Section{
		{ID: "s-2", ContractID: "c-1", Number: "3.2", Name: &name, Markdown: "## 3.2", BegPage: 14, EndPage: 15},
	}})
	m = mm.(*Model)

	// Stream a completed response carrying a citation.
	mm, _ = m.Update(StreamEventMsg{Event: initEvent(t)})
	m = mm.(*Model)
	now := time.Date(2025, 7, 1, 10, 0, 1, 0, time.UTC)
	final := conv.Message{
		ID: "a-1", ChatThreadID: "t-1", Role: conv.RoleAssistant,
		Status: conv.StatusCompleted, Content: "Vendor indemnifies [3.2].",
		Citations: []conv.Citation{{SectionID: "s-2", SectionNumber: "3.2", SectionName: &name, BegPage: &page}},
		CreatedAt: now,
	}
	mm, _ = m.Update(StreamEventMsg{Event: mkEvent(t, conv.EventAssistantMessage, final)})
	m = mm.(*Model)
	mm, _ = m.Update(StreamClosedMsg{})
	m = mm.(*Model)

	if len(m.targets) != 1 {
		t.Fatalf("expected 1 citation target, got %d", len(m.targets))
	}

	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'1'}, Alt: true})
	m = mm.(*Model)
	if !m.docPane.Visible() {
		t.Fatal("citation jump should open the document pane")
	}
	if cur := m.docPane.Current(); cur == nil || cur.Number != "3.2" {
		t.Errorf("expected pane on section 3.2, got %+v", cur)
	}
}
