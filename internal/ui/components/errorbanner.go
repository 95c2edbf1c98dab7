// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"strings"

	"github.com/etlundquist/ironbad-tui/internal/api"
	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
)

// =============================================================================
// ERROR BANNER COMPONENT
// =============================================================================

// ErrorBanner is a dismissible banner shown above the input when a request
// or stream fails. The transcript keeps whatever partial content arrived;
// the banner carries the failure and a recovery hint.
type ErrorBanner struct {
	title   string
	message string
	hint    string
	visible bool
	width   int

	theme *styles.Theme
}

// NewErrorBanner creates a hidden error banner.
func NewErrorBanner(theme *styles.Theme) ErrorBanner {
	return ErrorBanner{theme: theme}
}

// Show displays the banner for the given error, classifying API errors
// into a title and recovery hint.
func (b *ErrorBanner) Show(err error) {
	if err == nil {
		return
	}
	b.title, b.hint = classify(err)
	b.message = err.Error()
	b.visible = true
}

// ShowMessage displays the banner with explicit title and message.
func (b *ErrorBanner) ShowMessage(title, message string) {
	b.title = title
	b.message = message
	b.hint = ""
	b.visible = true
}

// Dismiss hides the banner.
func (b *ErrorBanner) Dismiss() {
	b.visible = false
}

// Visible reports whether the banner is shown.
func (b *ErrorBanner) Visible() bool {
	return b.visible
}

// SetWidth sets the render width.
func (b *ErrorBanner) SetWidth(w int) {
	b.width = w
}

// classify maps an error to a banner title and recovery hint.
func classify(err error) (title, hint string) {
	var clientErr *api.ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case api.ErrTypeUnreachable:
			return "Connection failed", "Check that the ironbad API is running and IRONBAD_API_URL is correct."
		case api.ErrTypeTimeout:
			return "Request timed out", "The server did not respond in time. Try again."
		case api.ErrTypeNotFound:
			return "Not found", "The contract or thread no longer exists on the server."
		case api.ErrTypeBadRequest:
			return "Request rejected", ""
		case api.ErrTypeServer:
			return "Server error", "The server reported a failure. Retry, or check the server logs."
		}
	}
	return "Error", ""
}

// View renders the banner, or an empty string when hidden.
func (b *ErrorBanner) View() string {
	if !b.visible {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(b.theme.ErrorTitle.Render(b.title))
	sb.WriteString("\n")
	sb.WriteString(b.theme.ErrorMessage.Render(b.message))
	if b.hint != "" {
		sb.WriteString("\n")
		sb.WriteString(b.theme.ErrorHint.Render(b.hint))
	}
	sb.WriteString("\n")
	sb.WriteString(b.theme.ErrorHint.Render("press esc to dismiss"))

	box := b.theme.ErrorBox
	if b.width > 4 {
		box = box.Width(b.width - 2)
	}
	return box.Render(sb.String())
}
