// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse decodes the server-sent event stream produced by the ironbad
// backend for chat and agent runs.
//
// The transport delivers bytes at arbitrary boundaries: a single logical
// event record may arrive split across several reads, and a single read may
// carry several complete records. The decoder therefore buffers raw bytes
// and only emits an event once its terminating blank line has been seen.
//
// Wire format per record:
//
//	event: <name>\n
//	data: <json fragment>\n
//	\n
//
// Multiple data lines are joined with a newline before JSON parsing, per
// the SSE specification. Records with bad JSON are logged and dropped; the
// stream itself is never failed by a single malformed record.
package sse
