// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides a SQLite-backed contract section cache for fast
// citation navigation and document pane rendering.
package cache

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// SQLite schema for the section cache. Sections are stored per contract
// together with the fetch timestamp of the batch they arrived in, so a
// whole contract's sections expire (and are refreshed) as a unit.
const Schema = `
-- Metadata table for schema version
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Contracts table: one row per cached contract, tracking fetch time
CREATE TABLE IF NOT EXISTS contracts (
    contract_id TEXT PRIMARY KEY,
    fetched_at INTEGER NOT NULL -- Unix timestamp
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_contracts_fetched_at ON contracts(fetched_at);

-- Sections table: contract sections with page ranges for citation jumps
CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    section_id TEXT NOT NULL,
    contract_id TEXT NOT NULL,
    type TEXT NOT NULL,
    level INTEGER NOT NULL,
    number TEXT NOT NULL,
    name TEXT,                  -- nullable: untitled sections
    markdown TEXT NOT NULL,
    beg_page INTEGER NOT NULL,
    end_page INTEGER NOT NULL,
    created_at INTEGER NOT NULL, -- Unix timestamp
    updated_at INTEGER NOT NULL, -- Unix timestamp
    UNIQUE(contract_id, section_id),
    FOREIGN KEY(contract_id) REFERENCES contracts(contract_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sections_contract_id ON sections(contract_id);
CREATE INDEX IF NOT EXISTS idx_sections_number ON sections(contract_id, number);
CREATE INDEX IF NOT EXISTS idx_sections_pages ON sections(contract_id, beg_page, end_page);
`

// InitMetadata seeds the metadata table with the schema version
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`
