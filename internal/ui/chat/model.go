// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/etlundquist/ironbad-tui/internal/api"
	conv "github.com/etlundquist/ironbad-tui/internal/chat"
	"github.com/etlundquist/ironbad-tui/internal/citations"
	"github.com/etlundquist/ironbad-tui/internal/session"
	"github.com/etlundquist/ironbad-tui/internal/ui/components"
	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateLoading   State = iota // Bootstrapping the current thread
	StateReady                  // Ready for input
	StateStreaming              // Receiving a streaming response
)

// =============================================================================
// SESSION AND SUPPORT INTERFACES
// =============================================================================

// Session is the stream-session surface the model drives. Implemented by
// *session.Controller; tests substitute a fake.
type Session interface {
	Active() bool
	SendChat(ctx context.Context, content string, threadID *string, sink session.Sink) error
	SendAgent(ctx context.Context, content string, threadID *string, attachments conv.AttachmentList, sink session.Sink) error
	Cancel()
	Bootstrap(ctx context.Context) (*conv.Thread, []conv.Message, error)
	NewChat(ctx context.Context, threadID string) error
}

// Snapshotter persists an outgoing thread locally before it is archived.
type Snapshotter interface {
	Save(thread conv.Thread, messages []conv.Message) error
}

// Logger receives diagnostic lines. The TUI owns the terminal, so this is
// normally a file-backed log.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// =============================================================================
// MODEL
// =============================================================================

// Config carries everything the chat model needs; the CLI assembles it from
// the loaded configuration and constructed clients.
type Config struct {
	Contract     *api.Contract
	Session      Session
	Sections     SectionSource
	Snapshots    Snapshotter
	Theme        *styles.Theme
	Mode         string // "chat" or "agent"
	ShowActivity bool
	MaxFPS       int
	Logger       Logger
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state State

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Conversation
	contract     *api.Contract
	store        *conv.Store
	reducer      *conv.Reducer
	session      Session
	sink         *programSink
	mode         string
	showActivity bool

	// Streaming throttle
	gate    *RenderGate
	ticking bool

	// Citation navigation: targets of the latest completed assistant message
	targets []citations.Target

	// Document pane
	sections SectionSource
	docPane  *DocumentPane

	// Local snapshots
	snapshots Snapshotter

	// UI components
	viewport  viewport.Model
	input     textinput.Model
	spinner   components.Spinner
	statusBar components.StatusBar
	errBanner components.ErrorBanner

	log Logger
}

// New creates the chat model. The returned model is not attached to a
// program yet; call Attach with the program's Send before Run.
func New(cfg Config) *Model {
	theme := cfg.Theme
	if theme == nil {
		theme = styles.NewTheme("auto", "")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	mode := cfg.Mode
	if mode != "chat" && mode != "agent" {
		mode = "chat"
	}

	store := conv.NewStore()
	if cfg.Contract != nil {
		store.SetContractID(cfg.Contract.ID)
	}

	input := textinput.New()
	input.Placeholder = "Ask about this contract..."
	input.Prompt = theme.InputPrompt.Render("> ")
	input.CharLimit = 4000
	input.Focus()

	statusBar := components.NewStatusBar(theme)
	statusBar.Mode = mode
	statusBar.Status = components.StatusLoading
	if cfg.Contract != nil {
		statusBar.ContractTitle = cfg.Contract.Title()
	}

	m := &Model{
		state:        StateLoading,
		theme:        theme,
		contract:     cfg.Contract,
		store:        store,
		reducer:      conv.NewReducer(store, logger),
		session:      cfg.Session,
		sink:         newProgramSink(),
		mode:         mode,
		showActivity: cfg.ShowActivity,
		gate:         NewRenderGate(cfg.MaxFPS),
		sections:     cfg.Sections,
		docPane:      NewDocumentPane(theme),
		snapshots:    cfg.Snapshots,
		viewport:     viewport.New(0, 0),
		input:        input,
		spinner:      components.NewSpinner(theme),
		statusBar:    statusBar,
		errBanner:    components.NewErrorBanner(theme),
		log:          logger,
	}
	return m
}

// Attach wires the model's sink to a running program's Send function.
func (m *Model) Attach(send func(tea.Msg)) {
	m.sink.attach(send)
}

// Store exposes the conversation store, used by the CLI for export.
func (m *Model) Store() *conv.Store {
	return m.store
}

// Init bootstraps the current thread and starts the input cursor.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.bootstrapCmd(),
		m.loadSectionsCmd(),
	)
}

// bootstrapCmd fetches the contract's current thread and its messages.
func (m *Model) bootstrapCmd() tea.Cmd {
	return func() tea.Msg {
		thread, messages, err := m.session.Bootstrap(context.Background())
		return BootstrapMsg{Thread: thread, Messages: messages, Err: err}
	}
}

// loadSectionsCmd fetches sections for the document pane, cache-first.
func (m *Model) loadSectionsCmd() tea.Cmd {
	if m.sections == nil || m.contract == nil {
		return nil
	}
	contractID := m.contract.ID
	return func() tea.Msg {
		sections, err := m.sections.Sections(context.Background(), contractID)
		return SectionsLoadedMsg{Sections: sections, Err: err}
	}
}

// newChatCmd snapshots the current thread locally, archives it on the
// server, and resets local state only when the archive succeeded.
func (m *Model) newChatCmd() tea.Cmd {
	threadID := m.store.ThreadID()
	if threadID == "" {
		// Nothing to archive: stay on the empty thread.
		return nil
	}

	if m.snapshots != nil {
		if t := m.store.Thread(); t != nil {
			msgs := make([]conv.Message, 0, m.store.Len())
			for _, msg := range m.store.Messages() {
				msgs = append(msgs, *msg)
			}
			if err := m.snapshots.Save(*t, msgs); err != nil {
				m.log.Printf("snapshot before archive failed: %v", err)
			}
		}
	}

	return func() tea.Msg {
		return NewChatDoneMsg{Err: m.session.NewChat(context.Background(), threadID)}
	}
}

// submit sends the input line through the configured stream mode.
func (m *Model) submit(content string) tea.Cmd {
	var threadID *string
	if id := m.store.ThreadID(); id != "" {
		tid := id
		threadID = &tid
	}

	var err error
	if m.mode == "agent" {
		err = m.session.SendAgent(context.Background(), content, threadID, nil, m.sink)
	} else {
		err = m.session.SendChat(context.Background(), content, threadID, m.sink)
	}
	if err != nil {
		m.errBanner.Show(err)
		return nil
	}

	m.state = StateStreaming
	m.statusBar.Status = components.StatusStreaming
	m.input.Reset()
	return m.startStreamUI()
}

// startStreamUI begins the spinner and the throttled render ticker.
func (m *Model) startStreamUI() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Start("Thinking")}
	if !m.ticking {
		m.ticking = true
		cmds = append(cmds, streamTickCmd(m.gate.Interval()))
	}
	return tea.Batch(cmds...)
}
