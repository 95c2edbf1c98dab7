// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "errors"

// ErrSnapshotNotFound is returned when a thread snapshot does not exist.
var ErrSnapshotNotFound = errors.New("thread snapshot not found")
