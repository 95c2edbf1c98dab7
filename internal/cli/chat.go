// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Plain-terminal chat REPL for environments where the full TUI
// cannot run (dumb terminals, piped output, remote shells).
//
// Command: chat
//
// Examples:
//   ironbad chat 7f3c...            Chat about a contract
//   ironbad chat 7f3c... --agent    Use the tool-running agent stream
//
// Interactive commands:
//   /new          Archive the thread and start a fresh one
//   /sources      Show the citations of the last response
//   /issues       List the contract's detected policy issues
//   /clauses      List the contract's matched clauses
//   /section N    Show a section by number ("3.2") or page ("14")
//   /history      List archived threads for this contract
//   /export ID    Write an archived thread to a markdown file
//   /mode         Show or switch between chat and agent mode
//   /quit, /q     Exit
//   Ctrl+C        Cancel the current response
//   Ctrl+D        Exit

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/etlundquist/ironbad-tui/internal/api"
	"github.com/etlundquist/ironbad-tui/internal/cache"
	conv "github.com/etlundquist/ironbad-tui/internal/chat"
	"github.com/etlundquist/ironbad-tui/internal/citations"
	"github.com/etlundquist/ironbad-tui/internal/config"
	"github.com/etlundquist/ironbad-tui/internal/session"
	"github.com/etlundquist/ironbad-tui/internal/sse"
	"github.com/etlundquist/ironbad-tui/internal/storage"
	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
	"github.com/etlundquist/ironbad-tui/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Teal).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	citationStyle = lipgloss.NewStyle().
			Foreground(styles.Teal)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// inputReader provides line editing with history via liner.
type inputReader struct {
	line        *liner.State
	historyFile string
}

func newInputReader() *inputReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &inputReader{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *inputReader) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *inputReader) close() {
	if err := config.EnsureConfigDir(); err == nil {
		// 0600: prompts can contain contract text
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// STREAM SINK
// =============================================================================

// replSink forwards stream callbacks onto channels consumed by the REPL
// loop, which is the single writer of the conversation store.
type replSink struct {
	events chan sse.Event
	done   chan error
}

func newReplSink() *replSink {
	return &replSink{
		events: make(chan sse.Event, 64),
		done:   make(chan error, 1),
	}
}

func (s *replSink) Event(ev sse.Event) { s.events <- ev }
func (s *replSink) Closed(err error)   { s.done <- err }

// =============================================================================
// REPL SESSION
// =============================================================================

type replSession struct {
	controller *session.Controller
	client     *api.Client
	contractID string
	store      *conv.Store
	reducer    *conv.Reducer
	snapshots  *storage.ThreadStore
	sections   *sectionBrowser
	mode       string
	color      bool
	width      int
}

// HandleChat implements "ironbad chat <contract-id>".
func HandleChat(args []string) error {
	parser := NewArgParser(args)
	cfg := LoadConfig()
	client := NewAPIClient(cfg)

	ctx := context.Background()
	contract, err := ResolveContract(ctx, client, parser.Subcommand())
	if err != nil {
		return err
	}

	mode := cfg.Chat.Mode
	if parser.BoolFlag("agent") {
		mode = "agent"
	}

	storageDir, err := cfg.StorageDir()
	if err != nil {
		return err
	}
	snapshots, err := storage.NewThreadStore(storageDir)
	if err != nil {
		return err
	}

	// Section lookups go through the on-disk cache when it opens; the
	// browser falls back to plain fetches when it does not.
	var sectionCache *cache.SectionCache
	if c, err := openSectionCache(cfg); err == nil {
		sectionCache = c
		defer sectionCache.Close()
	}

	logger := log.New(os.Stderr, "", 0)
	store := conv.NewStore()
	store.SetContractID(contract.ID)
	s := &replSession{
		controller: session.NewController(session.APIBackend{Client: client}, contract.ID, logger),
		client:     client,
		contractID: contract.ID,
		store:      store,
		reducer:    conv.NewReducer(store, logger),
		snapshots:  snapshots,
		sections:   &sectionBrowser{fetcher: client, cache: sectionCache, contractID: contract.ID},
		mode:       mode,
		color:      ColorEnabled() && !parser.BoolFlag("no-color"),
		width:      TerminalWidth(),
	}

	// Resume the contract's current thread, if any.
	if thread, messages, err := s.controller.Bootstrap(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", s.render(errorStyle, "[Error]"), err)
	} else if thread != nil {
		s.store.Load(*thread, messages)
		fmt.Println(s.render(infoStyle,
			fmt.Sprintf("Resumed thread with %d messages.", len(messages))))
	}

	fmt.Println(s.render(infoStyle,
		fmt.Sprintf("Chatting about %q in %s mode. /quit to exit.", contract.Title(), s.mode)))

	// Ctrl+C cancels the in-flight response instead of killing the REPL.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			s.controller.Cancel()
		}
	}()

	reader := newInputReader()
	defer reader.close()

	for {
		input, err := reader.read(s.render(promptStyle, "ironbad> "))
		if err != nil {
			// liner.ErrPromptAborted (Ctrl+C at the prompt) or EOF (Ctrl+D)
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := s.handleSlashCommand(ctx, input); quit {
				return nil
			}
			continue
		}

		if err := s.send(ctx, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", s.render(errorStyle, "[Error]"), err)
		}
	}
}

func (s *replSession) render(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return style.Render(text)
}

// handleSlashCommand runs one /command; returns true to exit the REPL.
func (s *replSession) handleSlashCommand(ctx context.Context, input string) bool {
	cmd, arg, _ := strings.Cut(input, " ")

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/new":
		s.startNewThread(ctx)

	case "/sources":
		s.printSources()

	case "/issues":
		s.printIssues(ctx)

	case "/clauses":
		s.printClauses(ctx)

	case "/section":
		arg = strings.TrimSpace(arg)
		if arg == "" {
			fmt.Println(s.render(errorStyle, "usage: /section <number|page>"))
		} else {
			s.showSection(ctx, arg)
		}

	case "/history":
		s.printHistory(strings.TrimSpace(arg))

	case "/export":
		arg = strings.TrimSpace(arg)
		if arg == "" {
			fmt.Println(s.render(errorStyle, "usage: /export <thread-id>"))
		} else if path, err := s.exportSnapshot(".", arg); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", s.render(errorStyle, "[Error]"), err)
		} else {
			fmt.Println(s.render(infoStyle, "wrote "+path))
		}

	case "/mode":
		arg = strings.TrimSpace(arg)
		if arg == "chat" || arg == "agent" {
			s.mode = arg
		} else if arg != "" {
			fmt.Println(s.render(errorStyle, "mode must be chat or agent"))
		}
		fmt.Println(s.render(infoStyle, "mode: "+s.mode))

	case "/help", "/h":
		fmt.Println(s.render(infoStyle,
			"/new  /sources  /issues  /clauses  /section <n>  /history [term]  /export <id>  /mode [chat|agent]  /quit"))

	default:
		fmt.Println(s.render(errorStyle, "unknown command "+cmd+" (try /help)"))
	}
	return false
}

// startNewThread snapshots and archives the live thread, then resets.
func (s *replSession) startNewThread(ctx context.Context) {
	threadID := s.store.ThreadID()
	if threadID == "" {
		fmt.Println(s.render(infoStyle, "already on a fresh thread"))
		return
	}

	if t := s.store.Thread(); t != nil {
		msgs := make([]conv.Message, 0, s.store.Len())
		for _, m := range s.store.Messages() {
			msgs = append(msgs, *m)
		}
		if err := s.snapshots.Save(*t, msgs); err != nil {
			fmt.Fprintf(os.Stderr, "%s snapshot failed: %v\n", s.render(errorStyle, "[Warn]"), err)
		}
	}

	if err := s.controller.NewChat(ctx, threadID); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", s.render(errorStyle, "[Error]"), err)
		return
	}
	s.store.Reset()
	fmt.Println(s.render(infoStyle, "started a new thread"))
}

// send posts the message and consumes the stream, echoing tokens as they
// arrive and re-rendering the final response as markdown.
func (s *replSession) send(ctx context.Context, content string) error {
	var threadID *string
	if id := s.store.ThreadID(); id != "" {
		tid := id
		threadID = &tid
	}

	sink := newReplSink()
	var err error
	if s.mode == "agent" {
		err = s.controller.SendAgent(ctx, content, threadID, nil, sink)
	} else {
		err = s.controller.SendChat(ctx, content, threadID, sink)
	}
	if err != nil {
		return err
	}

	assistantID := s.consumeStream(sink)
	s.printFinal(assistantID)
	return nil
}

// consumeStream applies every event to the store, echoing token deltas,
// until the stream closes. Returns the assistant message id seen.
//
// done may become ready while events are still buffered (the pump sends
// all events before Closed), and select picks between ready cases at
// random, so the channel must be drained before the close is honored or
// the tail of the stream — including the authoritative final message —
// would be lost.
func (s *replSession) consumeStream(sink *replSink) string {
	var assistantID string
	for {
		select {
		case ev := <-sink.events:
			s.applyEvent(ev, &assistantID)

		case err := <-sink.done:
			for {
				select {
				case ev := <-sink.events:
					s.applyEvent(ev, &assistantID)
					continue
				default:
				}
				break
			}
			fmt.Println()
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", s.render(errorStyle, "[Error]"), err)
			}
			return assistantID
		}
	}
}

// applyEvent feeds one event through the reducer and echoes its visible
// effect, recording the assistant message id when the stream announces it.
func (s *replSession) applyEvent(ev sse.Event, assistantID *string) {
	s.reducer.Apply(ev)
	switch ev.Name {
	case conv.EventInit:
		var p conv.InitPayload
		if json.Unmarshal(ev.Data, &p) == nil {
			*assistantID = p.AssistantMessage.ID
		}
	case conv.EventRunCreated:
		var p conv.RunCreatedPayload
		if json.Unmarshal(ev.Data, &p) == nil {
			*assistantID = p.AssistantMessage.ID
		}
	case conv.EventMessageTokenDelta:
		var p conv.TokenDeltaPayload
		if json.Unmarshal(ev.Data, &p) == nil {
			fmt.Print(p.Delta)
		}
	case conv.EventToolCall:
		var p conv.ToolCallPayload
		if json.Unmarshal(ev.Data, &p) == nil {
			fmt.Println(s.render(infoStyle, "[tool] "+p.ToolName))
		}
	}
}

// printFinal replaces the streamed echo with a markdown rendering of the
// completed response, plus its sources.
func (s *replSession) printFinal(assistantID string) {
	if assistantID == "" {
		return
	}
	msg := s.store.Get(assistantID)
	if msg == nil || msg.Status != conv.StatusCompleted || msg.Content == "" {
		return
	}

	if s.color {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(s.width),
		)
		if err == nil {
			if out, err := r.Render(msg.Content); err == nil {
				fmt.Print(out)
			}
		}
	}
	s.printSourcesFor(msg)
}

// printSources shows the citations of the most recent completed response.
func (s *replSession) printSources() {
	messages := s.store.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == conv.RoleAssistant && m.Status == conv.StatusCompleted {
			s.printSourcesFor(m)
			return
		}
	}
	fmt.Println(s.render(infoStyle, "no completed response yet"))
}

// printIssues lists the contract's detected policy issues.
func (s *replSession) printIssues(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	issues, err := s.client.GetContractIssues(reqCtx, s.contractID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", s.render(errorStyle, "[Error]"), err)
		return
	}
	if len(issues) == 0 {
		fmt.Println(s.render(infoStyle, "no issues found"))
		return
	}
	for i, issue := range issues {
		fmt.Println(s.render(citationStyle, fmt.Sprintf("[%d] %s", i+1, issue.Status)))
		fmt.Println("    " + issue.Explanation)
		for _, c := range issue.Citations {
			fmt.Println(s.render(infoStyle, "    § "+c.SectionNumber))
		}
	}
}

// printClauses lists the contract's matched clauses by section.
func (s *replSession) printClauses(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clauses, err := s.client.GetContractClauses(reqCtx, s.contractID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", s.render(errorStyle, "[Error]"), err)
		return
	}
	if len(clauses) == 0 {
		fmt.Println(s.render(infoStyle, "no clauses matched"))
		return
	}
	for i, clause := range clauses {
		sections := strings.Join(clause.ContractSections, ", ")
		fmt.Println(s.render(citationStyle, fmt.Sprintf("[%d] §§ %s", i+1, sections)))
		fmt.Println("    " + firstLine(clause.CleanedMarkdown))
	}
}

// showSection resolves and prints one section, by number or by page.
func (s *replSession) showSection(ctx context.Context, ref string) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sec, err := s.sections.ByRef(reqCtx, ref)
	if err != nil {
		if errors.Is(err, cache.ErrSectionNotFound) {
			fmt.Println(s.render(infoStyle, "no section matches "+ref))
			return
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", s.render(errorStyle, "[Error]"), err)
		return
	}

	header := "§ " + sec.Number
	if sec.Name != nil && *sec.Name != "" {
		header += " " + *sec.Name
	}
	header += fmt.Sprintf(" (pp. %d-%d)", sec.BegPage, sec.EndPage)
	fmt.Println(s.render(citationStyle, header))

	body := sec.Markdown
	if s.color {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(s.width),
		)
		if err == nil {
			if out, err := r.Render(body); err == nil {
				body = out
			}
		}
	}
	fmt.Print(body)
	fmt.Println()
}

// printHistory lists archived threads for the contract. With a term it
// searches transcripts instead, still scoped to the contract.
func (s *replSession) printHistory(term string) {
	var (
		metas []storage.SnapshotMeta
		err   error
	)
	if term == "" {
		metas, err = s.snapshots.ListForContract(s.contractID)
	} else {
		var all []storage.SnapshotMeta
		all, err = s.snapshots.Search(term)
		for _, m := range all {
			if m.ContractID == s.contractID {
				metas = append(metas, m)
			}
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", s.render(errorStyle, "[Error]"), err)
		return
	}
	if len(metas) == 0 {
		fmt.Println(s.render(infoStyle, "no archived threads"))
		return
	}
	for _, m := range metas {
		fmt.Println(s.render(citationStyle,
			fmt.Sprintf("%s  %s  %d messages", m.ThreadID, m.ArchivedAt.Format("2006-01-02 15:04"), m.MessageCount)))
		if m.Preview != "" {
			fmt.Println("    " + m.Preview)
		}
	}
}

// exportSnapshot writes an archived thread as markdown into dir and
// returns the path written.
func (s *replSession) exportSnapshot(dir, threadID string) (string, error) {
	snap, err := s.snapshots.Load(threadID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "thread-"+threadID+".md")
	if err := util.AtomicWriteFile(path, []byte(snap.ExportMarkdown()), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// firstLine truncates clause markdown to a single summary line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return util.TruncateRunes(strings.TrimSpace(s), 120)
}

func (s *replSession) printSourcesFor(msg *conv.Message) {
	cites := msg.ResponseCitations()
	if len(cites) == 0 {
		return
	}
	targets := citations.Targets(citations.Link(msg.Content, cites))
	if len(targets) == 0 {
		return
	}
	fmt.Println(s.render(infoStyle, "Sources:"))
	for i, t := range targets {
		line := fmt.Sprintf("  [%d] § %s", i+1, t.SectionNumber)
		if t.SectionName != nil && *t.SectionName != "" {
			line += " " + *t.SectionName
		}
		line += fmt.Sprintf(" (p. %d)", t.Page)
		fmt.Println(s.render(citationStyle, line))
	}
}
