// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ironbad API client.
type ClientError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnreachable
	ErrTypeTimeout
	ErrTypeNotFound
	ErrTypeBadRequest
	ErrTypeServer
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrUnreachable = &ClientError{Type: ErrTypeUnreachable, Message: "Ironbad API is not reachable"}
	ErrTimeout     = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrNotFound    = &ClientError{Type: ErrTypeNotFound, StatusCode: 404, Message: "resource not found"}

	// ErrNoCurrentThread distinguishes "no active conversation yet" from a
	// genuine missing resource: the thread bootstrap treats it as a normal
	// empty state, not a failure.
	ErrNoCurrentThread = &ClientError{Type: ErrTypeNotFound, StatusCode: 404, Message: "no current chat thread"}
)
