// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/etlundquist/ironbad-tui/internal/cache"
	"github.com/etlundquist/ironbad-tui/internal/config"
)

// HandleCache implements "ironbad cache <stats|clear|invalidate>".
func HandleCache(args []string) error {
	parser := NewArgParser(args)

	c, err := openSectionCache(LoadConfig())
	if err != nil {
		return err
	}
	defer c.Close()

	switch parser.Subcommand() {
	case "stats", "":
		contracts, sections, err := c.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Section cache: %d sections across %d contracts\n", sections, contracts)
		return nil

	case "clear":
		if err := c.Clear(); err != nil {
			return err
		}
		fmt.Println("Section cache cleared")
		return nil

	case "invalidate":
		id := ""
		if pos := parser.Positional(); len(pos) > 1 {
			id = pos[1]
		}
		if id == "" {
			return fmt.Errorf("usage: ironbad cache invalidate <contract-id>")
		}
		if err := c.Invalidate(id); err != nil {
			return err
		}
		fmt.Printf("Invalidated cached sections for %s\n", id)
		return nil

	default:
		return fmt.Errorf("unknown cache subcommand %q (want stats, clear, or invalidate)", parser.Subcommand())
	}
}

// openSectionCache opens the configured section cache.
func openSectionCache(cfg *config.Config) (*cache.SectionCache, error) {
	path, err := cfg.CachePath()
	if err != nil {
		return nil, err
	}
	return cache.Open(cache.Options{
		Path:       path,
		TTL:        time.Duration(cfg.Cache.TTLHours) * time.Hour,
		MaxEntries: cfg.Cache.MaxEntries,
	})
}
