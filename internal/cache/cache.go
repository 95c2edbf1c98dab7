// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/etlundquist/ironbad-tui/internal/api"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCacheMiss is returned when a contract has no fresh cached sections.
	// Callers should fetch from the backend and call PutSections.
	ErrCacheMiss = errors.New("cache: miss")

	// ErrSectionNotFound is returned when the contract is cached but the
	// requested section number or page is not present in it.
	ErrSectionNotFound = errors.New("cache: section not found")
)

// =============================================================================
// CACHE TYPES
// =============================================================================

// Options configures the section cache.
type Options struct {
	// Path is the SQLite database path. Parent directories are created.
	Path string
	// TTL is how long a contract's cached sections stay fresh.
	// Zero means entries never expire.
	TTL time.Duration
	// MaxEntries bounds the total number of cached section rows.
	// When exceeded, the oldest contracts are evicted whole.
	// Zero means unlimited.
	MaxEntries int
}

// SectionCache caches contract sections in SQLite so citation jumps and the
// document pane never wait on the network for a contract already seen this
// session. Sections for a contract are written and evicted as a batch: a
// partially cached contract would make page lookups silently wrong.
type SectionCache struct {
	db  *sql.DB
	opt Options
	now func() time.Time
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Open opens (creating if necessary) the section cache at opt.Path.
func Open(opt Options) (*SectionCache, error) {
	if opt.Path == "" {
		return nil, errors.New("cache: database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(opt.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", opt.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache metadata: %w", err)
	}

	return &SectionCache{
		db:  db,
		opt: opt,
		now: time.Now,
	}, nil
}

// Close closes the underlying database.
func (c *SectionCache) Close() error {
	return c.db.Close()
}

// =============================================================================
// WRITES
// =============================================================================

// PutSections replaces the cached sections for a contract with the given
// batch and refreshes its fetch timestamp. Any previously cached sections
// for the contract are discarded, then the cache is pruned to MaxEntries.
func (c *SectionCache) PutSections(contractID string, sections []api.Section) error {
	if contractID == "" {
		return errors.New("cache: contract id cannot be empty")
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fetchedAt := c.now().Unix()
	if _, err := tx.Exec(
		`INSERT INTO contracts (contract_id, fetched_at) VALUES (?, ?)
		 ON CONFLICT(contract_id) DO UPDATE SET fetched_at = excluded.fetched_at`,
		contractID, fetchedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert contract: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM sections WHERE contract_id = ?`, contractID); err != nil {
		return fmt.Errorf("failed to clear stale sections: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO sections
		 (section_id, contract_id, type, level, number, name, markdown, beg_page, end_page, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range sections {
		var name sql.NullString
		if s.Name != nil {
			name = sql.NullString{String: *s.Name, Valid: true}
		}
		if _, err := stmt.Exec(
			s.ID, contractID, s.Type, s.Level, s.Number, name,
			s.Markdown, s.BegPage, s.EndPage,
			s.CreatedAt.Unix(), s.UpdatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("failed to insert section %s: %w", s.ID, err)
		}
	}

	if err := c.prune(tx, contractID); err != nil {
		return err
	}

	return tx.Commit()
}

// prune evicts whole contracts, oldest fetch first, until the section row
// count fits MaxEntries. The contract just written is never evicted, even
// when it alone exceeds the limit.
func (c *SectionCache) prune(tx *sql.Tx, keep string) error {
	if c.opt.MaxEntries <= 0 {
		return nil
	}

	for {
		var total int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM sections`).Scan(&total); err != nil {
			return fmt.Errorf("failed to count sections: %w", err)
		}
		if total <= c.opt.MaxEntries {
			return nil
		}

		var victim string
		err := tx.QueryRow(
			`SELECT contract_id FROM contracts WHERE contract_id != ?
			 ORDER BY fetched_at ASC, contract_id ASC LIMIT 1`,
			keep,
		).Scan(&victim)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to pick eviction victim: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM contracts WHERE contract_id = ?`, victim); err != nil {
			return fmt.Errorf("failed to evict contract %s: %w", victim, err)
		}
	}
}

// Invalidate removes a contract and its sections from the cache.
// Removing an uncached contract is a no-op.
func (c *SectionCache) Invalidate(contractID string) error {
	if _, err := c.db.Exec(`DELETE FROM contracts WHERE contract_id = ?`, contractID); err != nil {
		return fmt.Errorf("failed to invalidate contract: %w", err)
	}
	return nil
}

// Clear empties the cache entirely.
func (c *SectionCache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM contracts`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// fresh reports whether the contract is cached and within TTL.
func (c *SectionCache) fresh(contractID string) (bool, error) {
	var fetchedAt int64
	err := c.db.QueryRow(
		`SELECT fetched_at FROM contracts WHERE contract_id = ?`, contractID,
	).Scan(&fetchedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read contract fetch time: %w", err)
	}
	if c.opt.TTL <= 0 {
		return true, nil
	}
	age := c.now().Sub(time.Unix(fetchedAt, 0))
	return age <= c.opt.TTL, nil
}

const sectionColumns = `section_id, contract_id, type, level, number, name, markdown, beg_page, end_page, created_at, updated_at`

func scanSection(row interface{ Scan(...any) error }) (api.Section, error) {
	var (
		s                    api.Section
		name                 sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&s.ID, &s.ContractID, &s.Type, &s.Level, &s.Number, &name,
		&s.Markdown, &s.BegPage, &s.EndPage, &createdAt, &updatedAt,
	)
	if err != nil {
		return api.Section{}, err
	}
	if name.Valid {
		s.Name = &name.String
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return s, nil
}

// Sections returns all cached sections for a contract in document order.
// Returns ErrCacheMiss when the contract is uncached or its batch has
// expired; stale sections are never served.
func (c *SectionCache) Sections(contractID string) ([]api.Section, error) {
	ok, err := c.fresh(contractID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCacheMiss
	}

	rows, err := c.db.Query(
		`SELECT `+sectionColumns+` FROM sections WHERE contract_id = ? ORDER BY id ASC`,
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var sections []api.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sections: %w", err)
	}
	return sections, nil
}

// SectionByNumber returns the cached section with the given section number
// (e.g. "3.2"). Returns ErrCacheMiss for an uncached or expired contract
// and ErrSectionNotFound when the contract is cached without that number.
func (c *SectionCache) SectionByNumber(contractID, number string) (*api.Section, error) {
	ok, err := c.fresh(contractID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCacheMiss
	}

	row := c.db.QueryRow(
		`SELECT `+sectionColumns+` FROM sections
		 WHERE contract_id = ? AND number = ? LIMIT 1`,
		contractID, number,
	)
	s, err := scanSection(row)
	if err == sql.ErrNoRows {
		return nil, ErrSectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan section: %w", err)
	}
	return &s, nil
}

// SectionForPage returns the cached section containing the given page.
// When nested sections overlap a page, the narrowest (deepest) range wins
// so a citation jump lands on the specific clause, not its parent article.
func (c *SectionCache) SectionForPage(contractID string, page int) (*api.Section, error) {
	ok, err := c.fresh(contractID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCacheMiss
	}

	row := c.db.QueryRow(
		`SELECT `+sectionColumns+` FROM sections
		 WHERE contract_id = ? AND beg_page <= ? AND end_page >= ?
		 ORDER BY (end_page - beg_page) ASC, level DESC, id ASC LIMIT 1`,
		contractID, page, page,
	)
	s, err := scanSection(row)
	if err == sql.ErrNoRows {
		return nil, ErrSectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan section: %w", err)
	}
	return &s, nil
}

// Stats returns the number of cached contracts and section rows.
func (c *SectionCache) Stats() (contracts, sections int, err error) {
	if err = c.db.QueryRow(`SELECT COUNT(*) FROM contracts`).Scan(&contracts); err != nil {
		return 0, 0, fmt.Errorf("failed to count contracts: %w", err)
	}
	if err = c.db.QueryRow(`SELECT COUNT(*) FROM sections`).Scan(&sections); err != nil {
		return 0, 0, fmt.Errorf("failed to count sections: %w", err)
	}
	return contracts, sections, nil
}
