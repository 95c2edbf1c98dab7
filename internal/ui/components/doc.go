// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable visual components of the ironbad
// TUI: the status bar, loading spinner, error banner, and syntax-highlighted
// clause blocks.
package components
