// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/etlundquist/ironbad-tui/internal/api"
)

func testCache(t *testing.T, opt Options) *SectionCache {
	t.Helper()
	if opt.Path == "" {
		opt.Path = filepath.Join(t.TempDir(), "cache.db")
	}
	c, err := Open(opt)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func strPtr(s string) *string { return &s }

func sampleSections(contractID string) []api.Section {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []api.Section{
		{
			ID: "s-1", ContractID: contractID, Type: "article", Level: 1,
			Number: "3", Name: strPtr("Indemnification"),
			Markdown: "# 3. Indemnification", BegPage: 12, EndPage: 18,
			CreatedAt: base, UpdatedAt: base,
		},
		{
			ID: "s-2", ContractID: contractID, Type: "section", Level: 2,
			Number: "3.2", Name: strPtr("Indemnification by Vendor"),
			Markdown: "## 3.2 Indemnification by Vendor", BegPage: 14, EndPage: 15,
			CreatedAt: base, UpdatedAt: base,
		},
		{
			ID: "s-3", ContractID: contractID, Type: "section", Level: 2,
			Number: "3.4", Name: nil,
			Markdown: "## 3.4", BegPage: 16, EndPage: 18,
			CreatedAt: base, UpdatedAt: base,
		},
	}
}

func TestPutAndGetSections(t *testing.T) {
	c := testCache(t, Options{TTL: time.Hour})

	if _, err := c.Sections("c-1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss before put, got %v", err)
	}

	want := sampleSections("c-1")
	if err := c.PutSections("c-1", want); err != nil {
		t.Fatalf("PutSections: %v", err)
	}

	got, err := c.Sections("c-1")
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d sections, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Number != want[i].Number {
			t.Errorf("section %d: got %s/%s, want %s/%s",
				i, got[i].ID, got[i].Number, want[i].ID, want[i].Number)
		}
	}
	if got[2].Name != nil {
		t.Errorf("expected nil name for untitled section, got %q", *got[2].Name)
	}
	if got[0].Name == nil || *got[0].Name != "Indemnification" {
		t.Errorf("expected name round-trip, got %v", got[0].Name)
	}
	if !got[0].CreatedAt.Equal(want[0].CreatedAt) {
		t.Errorf("created_at round-trip: got %v, want %v", got[0].CreatedAt, want[0].CreatedAt)
	}
}

func TestPutReplacesPreviousBatch(t *testing.T) {
	c := testCache(t, Options{})

	if err := c.PutSections("c-1", sampleSections("c-1")); err != nil {
		t.Fatalf("PutSections: %v", err)
	}
	replacement := sampleSections("c-1")[:1]
	if err := c.PutSections("c-1", replacement); err != nil {
		t.Fatalf("PutSections (replace): %v", err)
	}

	got, err := c.Sections("c-1")
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s-1" {
		t.Fatalf("expected single replacement section, got %+v", got)
	}
}

func TestSectionByNumber(t *testing.T) {
	c := testCache(t, Options{})
	if err := c.PutSections("c-1", sampleSections("c-1")); err != nil {
		t.Fatalf("PutSections: %v", err)
	}

	s, err := c.SectionByNumber("c-1", "3.2")
	if err != nil {
		t.Fatalf("SectionByNumber: %v", err)
	}
	if s.ID != "s-2" || s.BegPage != 14 {
		t.Errorf("got %s page %d, want s-2 page 14", s.ID, s.BegPage)
	}

	if _, err := c.SectionByNumber("c-1", "99"); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("expected ErrSectionNotFound for unknown number, got %v", err)
	}
	if _, err := c.SectionByNumber("c-2", "3.2"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss for uncached contract, got %v", err)
	}
}

func TestSectionForPagePrefersNarrowestRange(t *testing.T) {
	c := testCache(t, Options{})
	if err := c.PutSections("c-1", sampleSections("c-1")); err != nil {
		t.Fatalf("PutSections: %v", err)
	}

	// Page 14 is inside both article 3 (12-18) and section 3.2 (14-15).
	s, err := c.SectionForPage("c-1", 14)
	if err != nil {
		t.Fatalf("SectionForPage: %v", err)
	}
	if s.Number != "3.2" {
		t.Errorf("expected narrowest section 3.2, got %s", s.Number)
	}

	// Page 13 is only inside the article.
	s, err = c.SectionForPage("c-1", 13)
	if err != nil {
		t.Fatalf("SectionForPage: %v", err)
	}
	if s.Number != "3" {
		t.Errorf("expected article 3, got %s", s.Number)
	}

	if _, err := c.SectionForPage("c-1", 99); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("expected ErrSectionNotFound for out-of-range page, got %v", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := testCache(t, Options{TTL: time.Hour})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.PutSections("c-1", sampleSections("c-1")); err != nil {
		t.Fatalf("PutSections: %v", err)
	}
	if _, err := c.Sections("c-1"); err != nil {
		t.Fatalf("expected fresh hit, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := c.Sections("c-1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after TTL, got %v", err)
	}

	// A re-put refreshes the batch.
	if err := c.PutSections("c-1", sampleSections("c-1")); err != nil {
		t.Fatalf("PutSections (refresh): %v", err)
	}
	if _, err := c.Sections("c-1"); err != nil {
		t.Fatalf("expected hit after refresh, got %v", err)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := testCache(t, Options{})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.PutSections("c-1", sampleSections("c-1")); err != nil {
		t.Fatalf("PutSections: %v", err)
	}
	now = now.Add(1000 * time.Hour)
	if _, err := c.Sections("c-1"); err != nil {
		t.Fatalf("expected hit with zero TTL, got %v", err)
	}
}

func TestMaxEntriesEvictsOldestContract(t *testing.T) {
	c := testCache(t, Options{MaxEntries: 4})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.PutSections("c-old", sampleSections("c-old")); err != nil {
		t.Fatalf("PutSections c-old: %v", err)
	}
	now = now.Add(time.Minute)
	if err := c.PutSections("c-new", sampleSections("c-new")); err != nil {
		t.Fatalf("PutSections c-new: %v", err)
	}

	// 6 rows against a limit of 4: the older contract is evicted whole.
	if _, err := c.Sections("c-old"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected c-old evicted, got %v", err)
	}
	got, err := c.Sections("c-new")
	if err != nil {
		t.Fatalf("expected c-new retained, got %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 sections for c-new, got %d", len(got))
	}

	contracts, sections, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if contracts != 1 || sections != 3 {
		t.Errorf("expected 1 contract / 3 sections after eviction, got %d/%d", contracts, sections)
	}
}

func TestOversizeBatchIsNeverSelfEvicted(t *testing.T) {
	c := testCache(t, Options{MaxEntries: 2})

	if err := c.PutSections("c-1", sampleSections("c-1")); err != nil {
		t.Fatalf("PutSections: %v", err)
	}
	got, err := c.Sections("c-1")
	if err != nil {
		t.Fatalf("expected oversize batch kept, got %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected all 3 sections, got %d", len(got))
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := testCache(t, Options{})

	if err := c.PutSections("c-1", sampleSections("c-1")); err != nil {
		t.Fatalf("PutSections: %v", err)
	}
	if err := c.PutSections("c-2", sampleSections("c-2")); err != nil {
		t.Fatalf("PutSections: %v", err)
	}

	if err := c.Invalidate("c-1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := c.Sections("c-1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss after invalidate, got %v", err)
	}
	if _, err := c.Sections("c-2"); err != nil {
		t.Errorf("invalidate should not touch other contracts: %v", err)
	}

	// Invalidating an uncached contract is a no-op.
	if err := c.Invalidate("c-missing"); err != nil {
		t.Errorf("Invalidate uncached: %v", err)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	contracts, sections, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if contracts != 0 || sections != 0 {
		t.Errorf("expected empty cache after Clear, got %d/%d", contracts, sections)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.PutSections("c-1", sampleSections("c-1")); err != nil {
		t.Fatalf("PutSections: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	got, err := c2.Sections("c-1")
	if err != nil {
		t.Fatalf("Sections after reopen: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 sections after reopen, got %d", len(got))
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
