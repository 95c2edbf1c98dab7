// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/etlundquist/ironbad-tui/internal/api"
	"github.com/etlundquist/ironbad-tui/internal/cache"
	"github.com/etlundquist/ironbad-tui/internal/citations"
	"github.com/etlundquist/ironbad-tui/internal/ui/components"
	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
)

// =============================================================================
// SECTION SOURCE
// =============================================================================

// SectionSource supplies the contract sections shown in the document pane.
type SectionSource interface {
	Sections(ctx context.Context, contractID string) ([]api.Section, error)
}

// sectionFetcher is the API surface the cached source needs.
type sectionFetcher interface {
	GetContractSections(ctx context.Context, contractID string) ([]api.Section, error)
}

// CachedSectionSource serves sections cache-first so citation jumps are
// instant for any contract already seen. On a miss it fetches from the
// backend and repopulates the cache; cache write failures are swallowed
// because the fetched sections are already in hand.
type CachedSectionSource struct {
	Fetcher sectionFetcher
	Cache   *cache.SectionCache
}

// Sections implements SectionSource.
func (s *CachedSectionSource) Sections(ctx context.Context, contractID string) ([]api.Section, error) {
	if s.Cache != nil {
		sections, err := s.Cache.Sections(contractID)
		if err == nil {
			return sections, nil
		}
	}

	sections, err := s.Fetcher.GetContractSections(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		_ = s.Cache.PutSections(contractID, sections)
	}
	return sections, nil
}

// =============================================================================
// DOCUMENT PANE
// =============================================================================

// DocumentPane shows one contract section at a time with its page range,
// scrollable body, and prev/next navigation. Citation jumps open the pane
// directly at the cited section.
type DocumentPane struct {
	theme    *styles.Theme
	viewport viewport.Model
	sections []api.Section
	index    int
	width    int
	height   int
	visible  bool
}

// NewDocumentPane creates a hidden document pane.
func NewDocumentPane(theme *styles.Theme) *DocumentPane {
	vp := viewport.New(0, 0)
	return &DocumentPane{
		theme:    theme,
		viewport: vp,
	}
}

// SetSections replaces the pane's section list, keeping the current
// position when the section still exists.
func (d *DocumentPane) SetSections(sections []api.Section) {
	currentID := ""
	if s := d.Current(); s != nil {
		currentID = s.ID
	}
	d.sections = sections
	d.index = 0
	for i, s := range sections {
		if s.ID == currentID {
			d.index = i
			break
		}
	}
	d.refresh()
}

// Empty reports whether the pane has no sections loaded.
func (d *DocumentPane) Empty() bool {
	return len(d.sections) == 0
}

// Visible reports whether the pane is shown.
func (d *DocumentPane) Visible() bool {
	return d.visible
}

// Show makes the pane visible.
func (d *DocumentPane) Show() {
	d.visible = true
}

// Hide hides the pane.
func (d *DocumentPane) Hide() {
	d.visible = false
}

// Toggle flips pane visibility.
func (d *DocumentPane) Toggle() {
	d.visible = !d.visible
}

// Current returns the section under the cursor, or nil when empty.
func (d *DocumentPane) Current() *api.Section {
	if d.index < 0 || d.index >= len(d.sections) {
		return nil
	}
	return &d.sections[d.index]
}

// OpenTarget jumps to a resolved citation target and shows the pane.
// Matches by section number first, then by page containment.
func (d *DocumentPane) OpenTarget(t citations.Target) bool {
	for i, s := range d.sections {
		if s.Number == t.SectionNumber {
			d.index = i
			d.visible = true
			d.refresh()
			return true
		}
	}
	return d.OpenPage(t.Page)
}

// OpenPage jumps to the narrowest section containing the page.
func (d *DocumentPane) OpenPage(page int) bool {
	best := -1
	bestSpan := 0
	for i, s := range d.sections {
		if s.BegPage > page || s.EndPage < page {
			continue
		}
		span := s.EndPage - s.BegPage
		if best == -1 || span < bestSpan {
			best = i
			bestSpan = span
		}
	}
	if best == -1 {
		return false
	}
	d.index = best
	d.visible = true
	d.refresh()
	return true
}

// Next advances to the next section.
func (d *DocumentPane) Next() {
	if d.index < len(d.sections)-1 {
		d.index++
		d.refresh()
	}
}

// Prev moves to the previous section.
func (d *DocumentPane) Prev() {
	if d.index > 0 {
		d.index--
		d.refresh()
	}
}

// SetSize resizes the pane.
func (d *DocumentPane) SetSize(width, height int) {
	d.width = width
	d.height = height
	d.viewport.Width = max(width-2, 0)
	d.viewport.Height = max(height-3, 0)
	d.refresh()
}

// Update forwards scroll keys to the pane viewport.
func (d *DocumentPane) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return cmd
}

// refresh re-renders the current section into the viewport.
func (d *DocumentPane) refresh() {
	s := d.Current()
	if s == nil {
		d.viewport.SetContent(d.theme.DocScrollHint.Render("No sections loaded."))
		return
	}
	body := renderMarkdown(s.Markdown, d.viewport.Width, d.theme)
	body = components.HighlightFences(body, d.theme.CodeTheme)
	d.viewport.SetContent(body)
	d.viewport.GotoTop()
}

// header renders the pane title line: section number, name, page badge.
func (d *DocumentPane) header() string {
	s := d.Current()
	if s == nil {
		return d.theme.DocHeader.Render("Document")
	}

	title := d.theme.DocSectionNum.Render("§ " + s.Number)
	if s.Name != nil && *s.Name != "" {
		title += " " + *s.Name
	}

	pages := fmt.Sprintf("p. %d", s.BegPage)
	if s.EndPage != s.BegPage {
		pages = fmt.Sprintf("p. %d-%d", s.BegPage, s.EndPage)
	}

	pos := fmt.Sprintf("%d/%d", d.index+1, len(d.sections))
	return d.theme.DocHeader.Render(title) + " " +
		d.theme.DocPageBadge.Render(pages) + " " +
		d.theme.DocScrollHint.Render(pos)
}

// View renders the pane, or an empty string when hidden.
func (d *DocumentPane) View() string {
	if !d.visible {
		return ""
	}
	var b strings.Builder
	b.WriteString(d.header())
	b.WriteString("\n")
	b.WriteString(d.viewport.View())
	b.WriteString("\n")
	b.WriteString(d.theme.DocScrollHint.Render("[ / ] section  pgup/pgdn scroll  ctrl+d close"))
	return d.theme.DocPane.Render(b.String())
}
