// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/etlundquist/ironbad-tui/internal/api"
	"github.com/etlundquist/ironbad-tui/internal/cache"
	"github.com/etlundquist/ironbad-tui/internal/citations"
	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
)

type fakeFetcher struct {
	sections []api.Section
	err      error
	calls    int
}

func (f *fakeFetcher) GetContractSections(_ context.Context, _ string) ([]api.Section, error) {
	f.calls++
	return f.sections, f.err
}

func testSections() []api.Section {
	art := "Indemnification"
	sub := "Indemnification by Vendor"
	return []api.Section{
		{ID: "s-1", ContractID: "c-1", Type: "article", Level: 1, Number: "3", Name: &art,
			Markdown: "# 3. Indemnification", BegPage: 12, EndPage: 18},
		{ID: "s-2", ContractID: "c-1", Type: "section", Level: 2, Number: "3.2", Name: &sub,
			Markdown: "## 3.2 Indemnification by Vendor", BegPage: 14, EndPage: 15},
	}
}

func TestCachedSectionSourceFetchesOnMissThenHits(t *testing.T) {
	c, err := cache.Open(cache.Options{
		Path: filepath.Join(t.TempDir(), "cache.db"),
		TTL:  time.Hour,
	})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer c.Close()

	fetcher := &fakeFetcher{sections: testSections()}
	src := &CachedSectionSource{Fetcher: fetcher, Cache: c}

	got, err := src.Sections(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	if len(got) != 2 || fetcher.calls != 1 {
		t.Fatalf("expected fetch on miss, got %d sections, %d calls", len(got), fetcher.calls)
	}

	// Second read is served from the cache.
	got, err = src.Sections(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("Sections (cached): %v", err)
	}
	if len(got) != 2 || fetcher.calls != 1 {
		t.Fatalf("expected cache hit, got %d sections, %d calls", len(got), fetcher.calls)
	}
}

func TestCachedSectionSourceSurfacesFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	src := &CachedSectionSource{Fetcher: fetcher}
	if _, err := src.Sections(context.Background(), "c-1"); err == nil {
		t.Fatal("expected fetch error without cache")
	}
}

func TestDocumentPaneNavigation(t *testing.T) {
	d := NewDocumentPane(styles.NewTheme("dark", "monokai"))
	d.SetSize(60, 30)
	d.SetSections(testSections())

	if cur := d.Current(); cur == nil || cur.Number != "3" {
		t.Fatalf("expected first section, got %+v", cur)
	}

	d.Next()
	if cur := d.Current(); cur.Number != "3.2" {
		t.Errorf("expected 3.2 after Next, got %s", cur.Number)
	}
	d.Next() // past the end: stays put
	if cur := d.Current(); cur.Number != "3.2" {
		t.Errorf("Next past end should clamp, got %s", cur.Number)
	}
	d.Prev()
	if cur := d.Current(); cur.Number != "3" {
		t.Errorf("expected 3 after Prev, got %s", cur.Number)
	}
	d.Prev() // before the start: stays put
	if cur := d.Current(); cur.Number != "3" {
		t.Errorf("Prev past start should clamp, got %s", cur.Number)
	}
}

func TestDocumentPaneOpenTarget(t *testing.T) {
	d := NewDocumentPane(styles.NewTheme("dark", "monokai"))
	d.SetSize(60, 30)
	d.SetSections(testSections())

	if !d.OpenTarget(citations.Target{SectionNumber: "3.2", Page: 14}) {
		t.Fatal("OpenTarget should resolve by section number")
	}
	if !d.Visible() {
		t.Error("OpenTarget should show the pane")
	}
	if d.Current().Number != "3.2" {
		t.Errorf("expected 3.2, got %s", d.Current().Number)
	}

	// Unknown number falls back to page containment: page 13 is only in
	// the article.
	if !d.OpenTarget(citations.Target{SectionNumber: "99", Page: 13}) {
		t.Fatal("OpenTarget should fall back to page match")
	}
	if d.Current().Number != "3" {
		t.Errorf("expected article 3 by page, got %s", d.Current().Number)
	}

	if d.OpenTarget(citations.Target{SectionNumber: "99", Page: 99}) {
		t.Error("unresolvable target should report false")
	}
}

func TestDocumentPaneOpenPagePrefersNarrowest(t *testing.T) {
	d := NewDocumentPane(styles.NewTheme("dark", "monokai"))
	d.SetSize(60, 30)
	d.SetSections(testSections())

	// Page 14 is in both 3 (12-18) and 3.2 (14-15); the narrower wins.
	if !d.OpenPage(14) {
		t.Fatal("OpenPage should resolve")
	}
	if d.Current().Number != "3.2" {
		t.Errorf("expected narrowest section 3.2, got %s", d.Current().Number)
	}
}

func TestDocumentPaneKeepsPositionAcrossReload(t *testing.T) {
	d := NewDocumentPane(styles.NewTheme("dark", "monokai"))
	d.SetSize(60, 30)
	d.SetSections(testSections())
	d.Next()

	d.SetSections(testSections())
	if cur := d.Current(); cur.Number != "3.2" {
		t.Errorf("reload should keep position on s-2, got %s", cur.Number)
	}
}
