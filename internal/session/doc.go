// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session manages the lifecycle of chat and agent event streams
// for one contract.
//
// The Controller enforces an at-most-one-live-stream rule: sending a new
// message while a stream is active aborts the prior stream (without
// waiting for its pump to wind down) before opening the new one, so two
// streams never interleave into the same conversation. Cancellation is
// cooperative and is never reported as an error to the sink; NewChat is
// the one operation that refuses to run mid-stream, returning
// ErrStreamActive.
//
// # Key Types
//
//   - Controller: stream session controller (SendChat, SendAgent, Cancel,
//     Bootstrap, NewChat)
//   - Backend: the transport the controller drives, implemented for the
//     HTTP API by APIBackend
//   - Sink: receiver of decoded events and the terminal close callback
//
// # Usage
//
// Create a controller bound to one contract:
//
//	ctrl := session.NewController(session.APIBackend{Client: client}, contractID, logger)
//
// Send a message and consume the stream through a sink:
//
//	if err := ctrl.SendChat(ctx, content, threadID, sink); err != nil {
//	    // request could not be formed; stream errors arrive via the sink
//	}
//
// Cancel the in-flight response:
//
//	ctrl.Cancel()
//
// The sink's Closed callback always fires exactly once per established
// stream, after the stream slot has been released, so a new send issued
// from Closed never races the finished stream.
package session
