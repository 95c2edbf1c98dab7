// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	conv "github.com/etlundquist/ironbad-tui/internal/chat"
	"github.com/etlundquist/ironbad-tui/internal/citations"
	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders markdown with glamour for terminal display.
// Falls back to the raw text when rendering fails.
func renderMarkdown(md string, width int, theme *styles.Theme) string {
	if width <= 0 {
		width = 80
	}
	styleName := "light"
	if theme.IsDark {
		styleName = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(styleName),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript re-renders the conversation into the viewport and
// follows the tail.
func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// renderTranscript renders every message in store order.
func (m *Model) renderTranscript() string {
	messages := m.store.Messages()
	if len(messages) == 0 {
		return m.theme.InputPlaceholder.Render("No messages yet. Ask about this contract to get started.")
	}

	var parts []string
	for _, msg := range messages {
		parts = append(parts, m.renderMessage(msg))
	}
	return strings.Join(parts, "\n\n")
}

// renderMessage renders one message: role label, body, activity notes, and
// the citation footer for completed assistant responses.
func (m *Model) renderMessage(msg *conv.Message) string {
	var b strings.Builder

	label := m.theme.UserLabel
	switch msg.Role {
	case conv.RoleAssistant:
		label = m.theme.AssistantLabel
	case conv.RoleSystem:
		label = m.theme.SystemLabel
	}
	b.WriteString(label.Render(msg.Role.DisplayName()))
	b.WriteString("\n")

	if m.showActivity && len(msg.Activity) > 0 {
		for _, note := range msg.Activity {
			line := note.Label
			if note.Detail != "" {
				line += " " + note.Detail
			}
			b.WriteString(m.theme.ActivityNote.Render("* " + line))
			b.WriteString("\n")
		}
	}

	b.WriteString(m.renderBody(msg))

	if footer := m.renderCitationFooter(msg); footer != "" {
		b.WriteString("\n")
		b.WriteString(footer)
	}
	return b.String()
}

// renderBody renders the message content according to its status.
func (m *Model) renderBody(msg *conv.Message) string {
	switch {
	case msg.Status == conv.StatusFailed || msg.Status == conv.StatusCancelled:
		// Server-provided fallback or the partial content that survived.
		return m.theme.FailedNotice.Render(msg.Content)

	case msg.Status.Streaming():
		if msg.Content == "" {
			return m.theme.StreamCursor.Render("|")
		}
		// Raw text while streaming: glamour reflows partial markdown badly.
		return m.theme.MessageBody.Render(msg.Content) + m.theme.StreamCursor.Render("|")

	case msg.Role == conv.RoleAssistant:
		return renderMarkdown(msg.Content, m.viewport.Width-2, m.theme)

	default:
		return m.theme.MessageBody.Render(msg.Content)
	}
}

// renderCitationFooter lists the resolvable citations of a completed
// assistant message as numbered jump targets.
func (m *Model) renderCitationFooter(msg *conv.Message) string {
	if msg.Role != conv.RoleAssistant || msg.Status != conv.StatusCompleted {
		return ""
	}
	cites := msg.ResponseCitations()
	if len(cites) == 0 {
		return ""
	}

	targets := citations.Targets(citations.Link(msg.Content, cites))
	if len(targets) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.CitationUnlinked.Render("Sources:"))
	for i, t := range targets {
		b.WriteString("\n")
		b.WriteString(m.theme.CitationIndex.Render(fmt.Sprintf("  [%d]", i+1)))
		b.WriteString(" ")
		b.WriteString(m.theme.CitationSection.Render("§ " + t.SectionNumber))
		if t.SectionName != nil && *t.SectionName != "" {
			b.WriteString(" " + m.theme.CitationSection.Render(*t.SectionName))
		}
		b.WriteString(" " + m.theme.CitationPage.Render(fmt.Sprintf("(p. %d)", t.Page)))
	}
	b.WriteString("\n")
	b.WriteString(m.theme.CitationUnlinked.Render("  alt+n opens the cited section"))
	return b.String()
}

// refreshTargets recomputes the jump targets from the latest completed
// assistant message.
func (m *Model) refreshTargets() {
	m.targets = nil
	messages := m.store.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != conv.RoleAssistant || msg.Status != conv.StatusCompleted {
			continue
		}
		cites := msg.ResponseCitations()
		if len(cites) == 0 {
			return
		}
		m.targets = citations.Targets(citations.Link(msg.Content, cites))
		return
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m *Model) View() string {
	var b strings.Builder

	// Header
	title := "ironbad"
	if m.contract != nil {
		title = m.contract.Title()
	}
	sub := "new conversation"
	if id := m.store.ThreadID(); id != "" {
		sub = "thread " + id
	}
	b.WriteString(m.theme.HeaderTitle.Render(title))
	b.WriteString("  ")
	b.WriteString(m.theme.HeaderSubtitle.Render(sub))
	b.WriteString("\n")

	// Main area: transcript, optionally split with the document pane
	main := m.viewport.View()
	if m.docPane.Visible() {
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, m.docPane.View())
	}
	b.WriteString(main)
	b.WriteString("\n")

	// Spinner line
	if m.spinner.Active() {
		b.WriteString(m.spinner.View())
		b.WriteString("\n")
	}

	// Error banner
	if m.errBanner.Visible() {
		b.WriteString(m.errBanner.View())
		b.WriteString("\n")
	}

	// Input
	b.WriteString(m.theme.InputContainer.Render(m.input.View()))
	b.WriteString("\n")

	// Status bar
	b.WriteString(m.statusBar.View())

	return b.String()
}
