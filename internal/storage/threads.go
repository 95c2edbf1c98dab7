// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/etlundquist/ironbad-tui/internal/chat"
	"github.com/etlundquist/ironbad-tui/internal/util"
)

// =============================================================================
// SNAPSHOT TYPES
// =============================================================================

// ThreadSnapshot is a local copy of an archived conversation: the thread
// record plus its full transcript at archive time. The backend keeps
// archived threads too; the snapshot exists so prior conversations remain
// readable offline and survive backend resets.
type ThreadSnapshot struct {
	Thread     chat.Thread    `json:"thread"`
	Messages   []chat.Message `json:"messages"`
	ArchivedAt time.Time      `json:"archived_at"`
}

// SnapshotMeta is the listing view of a snapshot, cheap enough to build
// without parsing full transcripts into memory.
type SnapshotMeta struct {
	ThreadID     string    `json:"thread_id"`
	ContractID   string    `json:"contract_id"`
	ArchivedAt   time.Time `json:"archived_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // first user message, truncated
}

// =============================================================================
// THREAD STORE
// =============================================================================

// ThreadStore persists archived thread snapshots as JSON files, one per
// thread, named by thread id.
type ThreadStore struct {
	// BaseDir is the snapshot directory.
	BaseDir string

	// MaxSnapshots limits stored snapshots (0 = unlimited). Oldest are
	// pruned first.
	MaxSnapshots int
}

// NewThreadStore creates a store rooted at the given directory.
func NewThreadStore(baseDir string) (*ThreadStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &ThreadStore{
		BaseDir:      baseDir,
		MaxSnapshots: 200,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a snapshot of the thread and its transcript. Called right
// before a thread is archived for a new chat; overwrites any earlier
// snapshot of the same thread.
func (s *ThreadStore) Save(thread chat.Thread, messages []chat.Message) error {
	if thread.ID == "" {
		return fmt.Errorf("cannot snapshot a thread without an id")
	}

	snap := ThreadSnapshot{
		Thread:     thread,
		Messages:   messages,
		ArchivedAt: time.Now(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	if err := util.AtomicWriteFile(s.filePath(thread.ID), data, 0644); err != nil {
		return err
	}

	if s.MaxSnapshots > 0 {
		s.enforceLimit()
	}
	return nil
}

// enforceLimit removes the oldest snapshots when over the cap.
func (s *ThreadStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxSnapshots {
		return
	}

	// List returns newest first; prune from the tail.
	for _, meta := range metas[s.MaxSnapshots:] {
		s.Delete(meta.ThreadID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a snapshot by thread id.
func (s *ThreadStore) Load(threadID string) (*ThreadSnapshot, error) {
	data, err := os.ReadFile(s.filePath(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	var snap ThreadSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns metadata for all snapshots, most recently archived first.
// Unreadable files are skipped rather than failing the whole listing.
func (s *ThreadStore) List() ([]SnapshotMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SnapshotMeta{}, nil
		}
		return nil, err
	}

	var metas []SnapshotMeta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snap, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, snap.meta())
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].ArchivedAt.After(metas[j].ArchivedAt)
	})
	return metas, nil
}

// ListForContract returns snapshots belonging to one contract, most recent
// first.
func (s *ThreadStore) ListForContract(contractID string) ([]SnapshotMeta, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	out := metas[:0]
	for _, meta := range metas {
		if meta.ContractID == contractID {
			out = append(out, meta)
		}
	}
	return out, nil
}

// Search returns snapshots whose transcripts contain the query,
// case-insensitive, most recent first.
func (s *ThreadStore) Search(query string) ([]SnapshotMeta, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)

	var out []SnapshotMeta
	for _, meta := range metas {
		snap, err := s.Load(meta.ThreadID)
		if err != nil {
			continue
		}
		for _, m := range snap.Messages {
			if strings.Contains(strings.ToLower(m.Content), needle) {
				out = append(out, meta)
				break
			}
		}
	}
	return out, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a snapshot. Deleting a missing snapshot is not an error.
func (s *ThreadStore) Delete(threadID string) error {
	err := os.Remove(s.filePath(threadID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes all snapshots.
func (s *ThreadStore) Clear() error {
	metas, err := s.List()
	if err != nil {
		return err
	}
	for _, meta := range metas {
		if err := s.Delete(meta.ThreadID); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *ThreadStore) filePath(threadID string) string {
	return filepath.Join(s.BaseDir, threadID+".json")
}

func (snap *ThreadSnapshot) meta() SnapshotMeta {
	meta := SnapshotMeta{
		ThreadID:     snap.Thread.ID,
		ContractID:   snap.Thread.ContractID,
		ArchivedAt:   snap.ArchivedAt,
		MessageCount: len(snap.Messages),
	}
	for _, m := range snap.Messages {
		if m.Role == chat.RoleUser && m.Content != "" {
			meta.Preview = util.TruncateRunes(strings.ReplaceAll(m.Content, "\n", " "), 50)
			break
		}
	}
	return meta
}

// ExportMarkdown renders a snapshot as a markdown transcript for sharing
// outside the client.
func (snap *ThreadSnapshot) ExportMarkdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Conversation %s\n\n", snap.Thread.ID)
	fmt.Fprintf(&sb, "Contract: %s  \n", snap.Thread.ContractID)
	fmt.Fprintf(&sb, "Archived: %s\n\n", snap.ArchivedAt.Format(time.RFC3339))
	for _, m := range snap.Messages {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", m.Role.DisplayName(), m.Content)
	}
	return sb.String()
}
