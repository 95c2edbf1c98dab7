// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"strconv"

	"github.com/etlundquist/ironbad-tui/internal/api"
	"github.com/etlundquist/ironbad-tui/internal/cache"
)

// =============================================================================
// SECTION BROWSER
// =============================================================================

// contractSections is the API surface the browser needs.
type contractSections interface {
	GetContractSections(ctx context.Context, contractID string) ([]api.Section, error)
}

// sectionBrowser resolves sections by number or page for the REPL: cache
// first, fetching and priming the cache on a miss. Works without a cache
// too, matching against a fresh fetch in memory.
type sectionBrowser struct {
	fetcher    contractSections
	cache      *cache.SectionCache
	contractID string
}

// ByRef resolves "3.2" as a section number and a bare integer as a page.
func (b *sectionBrowser) ByRef(ctx context.Context, ref string) (*api.Section, error) {
	if page, err := strconv.Atoi(ref); err == nil && page > 0 {
		return b.byPage(ctx, page)
	}
	return b.byNumber(ctx, ref)
}

func (b *sectionBrowser) byNumber(ctx context.Context, number string) (*api.Section, error) {
	if b.cache != nil {
		sec, err := b.cache.SectionByNumber(b.contractID, number)
		if err == nil {
			return sec, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			return nil, err
		}
		if err := b.prime(ctx); err != nil {
			return nil, err
		}
		return b.cache.SectionByNumber(b.contractID, number)
	}

	sections, err := b.fetcher.GetContractSections(ctx, b.contractID)
	if err != nil {
		return nil, err
	}
	for i := range sections {
		if sections[i].Number == number {
			return &sections[i], nil
		}
	}
	return nil, cache.ErrSectionNotFound
}

func (b *sectionBrowser) byPage(ctx context.Context, page int) (*api.Section, error) {
	if b.cache != nil {
		sec, err := b.cache.SectionForPage(b.contractID, page)
		if err == nil {
			return sec, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			return nil, err
		}
		if err := b.prime(ctx); err != nil {
			return nil, err
		}
		return b.cache.SectionForPage(b.contractID, page)
	}

	sections, err := b.fetcher.GetContractSections(ctx, b.contractID)
	if err != nil {
		return nil, err
	}
	return narrowestForPage(sections, page)
}

// prime fetches the contract's sections and stores them as a fresh batch.
func (b *sectionBrowser) prime(ctx context.Context) error {
	sections, err := b.fetcher.GetContractSections(ctx, b.contractID)
	if err != nil {
		return err
	}
	return b.cache.PutSections(b.contractID, sections)
}

// narrowestForPage picks the section containing the page with the smallest
// page span, breaking ties by depth, so a lookup lands on the specific
// clause rather than its parent article.
func narrowestForPage(sections []api.Section, page int) (*api.Section, error) {
	var best *api.Section
	for i := range sections {
		s := &sections[i]
		if s.BegPage > page || s.EndPage < page {
			continue
		}
		if best == nil {
			best = s
			continue
		}
		span, bestSpan := s.EndPage-s.BegPage, best.EndPage-best.BegPage
		if span < bestSpan || (span == bestSpan && s.Level > best.Level) {
			best = s
		}
	}
	if best == nil {
		return nil, cache.ErrSectionNotFound
	}
	return best, nil
}
