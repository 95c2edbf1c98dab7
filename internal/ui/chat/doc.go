// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view: the conversation
// transcript, input line, streaming updates, citation navigation, and the
// contract document pane.
//
// The model never talks to the network directly. Stream events arrive as
// Bubble Tea messages posted by a session sink, flow through the event
// reducer into the conversation store, and are rendered from store state on
// throttled ticks so token bursts cannot outrun the terminal.
package chat
