// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
)

// =============================================================================
// SPINNER COMPONENT
// =============================================================================

// Spinner is the loading indicator shown while a response is streaming or a
// contract is being fetched. It wraps the bubbles spinner and adds a label
// and an elapsed-time readout.
type Spinner struct {
	spinner   spinner.Model
	theme     *styles.Theme
	label     string
	startTime time.Time
	active    bool
}

// NewSpinner creates a spinner with an ASCII-safe frame set.
func NewSpinner(theme *styles.Theme) Spinner {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Spinner

	return Spinner{
		spinner: s,
		theme:   theme,
		label:   "Working",
	}
}

// Start activates the spinner with a label and resets the elapsed timer.
func (s *Spinner) Start(label string) tea.Cmd {
	s.label = label
	s.startTime = time.Now()
	s.active = true
	return s.spinner.Tick
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.active = false
}

// Active reports whether the spinner is currently shown.
func (s *Spinner) Active() bool {
	return s.active
}

// Update advances the spinner animation.
func (s *Spinner) Update(msg tea.Msg) tea.Cmd {
	if !s.active {
		return nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return cmd
}

// View renders the spinner line, e.g. "| Thinking... (3s)".
func (s *Spinner) View() string {
	if !s.active {
		return ""
	}
	elapsed := time.Since(s.startTime).Round(time.Second)
	return fmt.Sprintf("%s %s %s",
		s.spinner.View(),
		s.theme.ThinkingText.Render(s.label+"..."),
		s.theme.ThinkingTime.Render(fmt.Sprintf("(%s)", elapsed)),
	)
}
