// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the conversation domain for the ironbad client: the
// thread and message model, the wire event payloads, the reducer that
// applies decoded events to conversation state, and the in-memory store the
// UI renders from.
//
// The store is mutated only by the reducer (driven by stream events) and by
// explicit user actions (send, new chat), always on the UI event loop. The
// UI is a read-only observer between mutations, so no locking is needed.
package chat
