// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the ironbad TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// CodeTheme is the chroma style name for highlighted clause text.
	CodeTheme string

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App       lipgloss.Style
	Container lipgloss.Style

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	MessageBody    lipgloss.Style
	StreamCursor   lipgloss.Style
	ActivityNote   lipgloss.Style
	FailedNotice   lipgloss.Style

	// ==========================================================================
	// CITATION STYLES
	// ==========================================================================

	CitationRef      lipgloss.Style
	CitationIndex    lipgloss.Style
	CitationSection  lipgloss.Style
	CitationPage     lipgloss.Style
	CitationUnlinked lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputText        lipgloss.Style
	InputPlaceholder lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	ModeChat     lipgloss.Style
	ModeAgent    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// SPINNER AND LOADING STYLES
	// ==========================================================================

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ThinkingTime lipgloss.Style

	// ==========================================================================
	// ERROR BANNER STYLES
	// ==========================================================================

	ErrorBox     lipgloss.Style
	ErrorTitle   lipgloss.Style
	ErrorMessage lipgloss.Style
	ErrorHint    lipgloss.Style

	// ==========================================================================
	// DOCUMENT PANE STYLES
	// ==========================================================================

	DocPane       lipgloss.Style
	DocHeader     lipgloss.Style
	DocSectionNum lipgloss.Style
	DocPageBadge  lipgloss.Style
	DocScrollHint lipgloss.Style
}

// NewTheme creates a theme for the given mode ("dark", "light", or "auto")
// and chroma code style. Auto mode probes the terminal background.
func NewTheme(mode, codeTheme string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch mode {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	// Pin adaptive color resolution to the configured mode
	lipgloss.SetHasDarkBackground(isDark)

	if codeTheme == "" {
		codeTheme = "monokai"
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
		CodeTheme:    codeTheme,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// App container
	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	// Header
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal).
		Background(SurfaceDim).
		Padding(0, 2)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo)

	t.SystemLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextMuted)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.StreamCursor = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true)

	t.ActivityNote = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(2)

	t.FailedNotice = lipgloss.NewStyle().
		Foreground(Rose).
		Italic(true)

	// Citations
	t.CitationRef = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true).
		Underline(true)

	t.CitationIndex = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.CitationSection = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.CitationPage = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.CitationUnlinked = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.InputText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ModeChat = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.ModeAgent = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Spinner and loading
	t.Spinner = lipgloss.NewStyle().
		Foreground(Indigo)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.ThinkingTime = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Error banner
	t.ErrorBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)

	t.ErrorTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)

	t.ErrorMessage = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.ErrorHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Document pane
	t.DocPane = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Overlay).
		PaddingLeft(1)

	t.DocHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo).
		Background(SurfaceDim).
		Padding(0, 1)

	t.DocSectionNum = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.DocPageBadge = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(IndigoDeep).
		Padding(0, 1)

	t.DocScrollHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
}
