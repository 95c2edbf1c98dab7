// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists archived conversation snapshots to local JSON
// files under ~/.ironbad/threads. Starting a new chat archives the prior
// thread server-side; the snapshot keeps its transcript readable locally
// afterwards.
package storage
