// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"io"

	"github.com/etlundquist/ironbad-tui/internal/sse"
)

// =============================================================================
// EVENT STREAM
// =============================================================================

// Stream is one open server-sent event connection. Next blocks until the
// next decoded event arrives, returning io.EOF when the server closes the
// stream cleanly. Close releases the connection; a Next call blocked on the
// network unblocks with an error once the request context is cancelled.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
}

func newStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:   body,
		reader: sse.NewReader(body, nil),
	}
}

// Next returns the next event from the stream.
func (s *Stream) Next() (sse.Event, error) {
	ev, err := s.reader.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		return sse.Event{}, &ClientError{Type: ErrTypeUnreachable, Message: "stream read failed", Cause: err}
	}
	return ev, err
}

// Close terminates the stream. Safe to call more than once.
func (s *Stream) Close() error {
	return s.body.Close()
}
