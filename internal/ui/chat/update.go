// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/etlundquist/ironbad-tui/internal/ui/components"
)

// Update is the Bubble Tea update loop.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		return m, m.spinner.Update(msg)

	case BootstrapMsg:
		return m.handleBootstrap(msg)

	case SectionsLoadedMsg:
		if msg.Err != nil {
			m.log.Printf("section load failed: %v", msg.Err)
			return m, nil
		}
		m.docPane.SetSections(msg.Sections)
		return m, nil

	case NewChatDoneMsg:
		if msg.Err != nil {
			// Archive failed: the current thread stays live.
			m.errBanner.Show(msg.Err)
			return m, nil
		}
		m.store.Reset()
		m.targets = nil
		m.refreshTranscript()
		return m, nil

	case StreamEventMsg:
		m.reducer.Apply(msg.Event)
		m.gate.MarkDirty()
		var cmd tea.Cmd
		if m.state != StateStreaming {
			m.state = StateStreaming
			m.statusBar.Status = components.StatusStreaming
			cmd = m.startStreamUI()
		}
		return m, cmd

	case StreamTickMsg:
		return m.handleStreamTick()

	case StreamClosedMsg:
		return m.handleStreamClosed(msg)

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)
	}

	return m, m.updateComponents(msg)
}

// resize propagates a terminal resize to every component.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	docWidth := 0
	if m.docPane.Visible() {
		docWidth = width / 2
		m.docPane.SetSize(docWidth, height-chromeHeight(m))
	}

	m.viewport.Width = width - docWidth
	m.viewport.Height = height - chromeHeight(m)
	m.input.Width = width - 4
	m.statusBar.Width = width
	m.errBanner.SetWidth(width)
	m.refreshTranscript()
}

// chromeHeight is the vertical space taken by everything except the
// transcript: header, input, status bar, and the banner when shown.
func chromeHeight(m *Model) int {
	h := 5
	if m.errBanner.Visible() {
		h += 5
	}
	return h
}

// handleKey routes keyboard input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		m.session.Cancel()
		return m, tea.Quit

	case "esc":
		if m.state == StateStreaming {
			// Cancel the stream; partial content stays in the transcript.
			m.session.Cancel()
			return m, nil
		}
		if m.errBanner.Visible() {
			m.errBanner.Dismiss()
			m.resize(m.width, m.height)
			return m, nil
		}
		if m.docPane.Visible() {
			m.docPane.Hide()
			m.resize(m.width, m.height)
			return m, nil
		}
		return m, nil

	case "enter":
		if m.state != StateReady {
			return m, nil
		}
		content := strings.TrimSpace(m.input.Value())
		if content == "" {
			return m, nil
		}
		return m, m.submit(content)

	case "ctrl+n":
		if m.state == StateStreaming {
			return m, nil
		}
		return m, m.newChatCmd()

	case "ctrl+d":
		m.docPane.Toggle()
		m.resize(m.width, m.height)
		if m.docPane.Visible() && m.docPane.Empty() {
			return m, m.loadSectionsCmd()
		}
		return m, nil

	case "[":
		if m.docPane.Visible() {
			m.docPane.Prev()
			return m, nil
		}

	case "]":
		if m.docPane.Visible() {
			m.docPane.Next()
			return m, nil
		}

	case "pgup", "pgdown":
		if m.docPane.Visible() {
			return m, m.docPane.Update(msg)
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// alt+1..alt+9 jump to the numbered citation of the latest response
	if strings.HasPrefix(key, "alt+") {
		if n := int(key[len(key)-1] - '0'); n >= 1 && n <= 9 && len(key) == 5 {
			return m, m.jumpToCitation(n - 1)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// jumpToCitation opens the document pane at the n-th citation target of the
// most recent completed assistant message.
func (m *Model) jumpToCitation(idx int) tea.Cmd {
	if idx < 0 || idx >= len(m.targets) {
		return nil
	}
	target := m.targets[idx]

	if m.docPane.Empty() {
		// Sections not loaded yet: load first, the jump lands on toggle.
		return m.loadSectionsCmd()
	}
	if m.docPane.OpenTarget(target) {
		m.resize(m.width, m.height)
	}
	return nil
}

// handleBootstrap installs the current thread fetched at startup.
func (m *Model) handleBootstrap(msg BootstrapMsg) (tea.Model, tea.Cmd) {
	m.state = StateReady
	m.statusBar.Status = components.StatusReady

	if msg.Err != nil {
		m.errBanner.Show(msg.Err)
		m.statusBar.Status = components.StatusError
		return m, nil
	}
	if msg.Thread != nil {
		m.store.Load(*msg.Thread, msg.Messages)
		m.refreshTranscript()
		m.refreshTargets()
	}
	return m, nil
}

// handleStreamTick performs a throttled transcript refresh and keeps the
// ticker running while a stream is live or renders are pending.
func (m *Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if m.gate.TryRender() {
		m.refreshTranscript()
	}
	if m.state == StateStreaming || m.gate.Dirty() {
		return m, streamTickCmd(m.gate.Interval())
	}
	m.ticking = false
	return m, nil
}

// handleStreamClosed finalizes the transcript when the stream ends.
func (m *Model) handleStreamClosed(msg StreamClosedMsg) (tea.Model, tea.Cmd) {
	m.gate.ForceRender()
	m.refreshTranscript()
	m.refreshTargets()
	m.spinner.Stop()
	m.state = StateReady
	m.statusBar.Status = components.StatusReady

	if msg.Err != nil {
		m.errBanner.Show(msg.Err)
		m.statusBar.Status = components.StatusError
		m.resize(m.width, m.height)
	}
	return m, nil
}

// handleConfigReloaded applies hot-reloaded settings. Mode changes are
// deferred while a stream is active so the in-flight request keeps its
// original endpoint.
func (m *Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if m.state != StateStreaming && (msg.Mode == "chat" || msg.Mode == "agent") {
		m.mode = msg.Mode
		m.statusBar.Mode = m.mode
	}
	m.showActivity = msg.ShowActivity
	if msg.Theme != nil {
		m.theme = msg.Theme
		prev := m.statusBar
		m.statusBar = components.NewStatusBar(msg.Theme)
		m.statusBar.Mode = m.mode
		m.statusBar.Width = prev.Width
		m.statusBar.Status = prev.Status
		m.statusBar.ContractTitle = prev.ContractTitle
	}
	m.refreshTranscript()
	return m, nil
}

// updateComponents forwards unrouted messages to the focused components.
func (m *Model) updateComponents(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return tea.Batch(cmds...)
}
