// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ironbad command line surface: argument
// parsing, the contract listing and config commands, and the plain-terminal
// chat REPL used where the full TUI cannot run.
package cli
