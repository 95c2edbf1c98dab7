// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
	"github.com/etlundquist/ironbad-tui/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Status represents the current application status.
type Status int

const (
	StatusReady Status = iota
	StatusStreaming
	StatusLoading
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusStreaming:
		return "Streaming..."
	case StatusLoading:
		return "Loading..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// StatusBar is the bottom status bar: mode indicator, contract title,
// current status, and contextual key hints.
type StatusBar struct {
	Mode          string // "chat" or "agent"
	ContractTitle string
	Status        Status
	Width         int

	theme *styles.Theme
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) StatusBar {
	return StatusBar{
		Mode:   "chat",
		Status: StatusReady,
		theme:  theme,
	}
}

// shortcuts returns the key hints appropriate for the current status.
func (sb *StatusBar) shortcuts() [][2]string {
	if sb.Status == StatusStreaming {
		return [][2]string{
			{"esc", "cancel"},
			{"ctrl+c", "quit"},
		}
	}
	return [][2]string{
		{"enter", "send"},
		{"ctrl+n", "new chat"},
		{"ctrl+d", "document"},
		{"ctrl+c", "quit"},
	}
}

// View renders the status bar at the configured width.
func (sb *StatusBar) View() string {
	modeStyle := sb.theme.ModeChat
	if sb.Mode == "agent" {
		modeStyle = sb.theme.ModeAgent
	}

	left := modeStyle.Render(strings.ToUpper(sb.Mode))
	if sb.ContractTitle != "" {
		left += " " + util.TruncateWidth(sb.ContractTitle, 40)
	}
	left += " | " + sb.Status.String()

	var hints []string
	for _, kv := range sb.shortcuts() {
		hints = append(hints,
			sb.theme.ShortcutKey.Render(kv[0])+" "+sb.theme.ShortcutDesc.Render(kv[1]))
	}
	right := strings.Join(hints, "  ")

	if sb.Width <= 0 {
		return sb.theme.StatusBar.Render(left + "  " + right)
	}

	gap := sb.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		// Narrow terminal: drop the hints before the status
		return sb.theme.StatusBar.Width(sb.Width).Render(left)
	}
	return sb.theme.StatusBar.Width(sb.Width).Render(
		left + strings.Repeat(" ", gap) + right)
}
