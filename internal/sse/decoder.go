// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// =============================================================================
// EVENT TYPE
// =============================================================================

// Event is one decoded frame from the stream: a name and its JSON payload.
type Event struct {
	Name string
	Data json.RawMessage
}

// Logger is the minimal logging surface the decoder needs to report dropped
// records. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// nopLogger discards everything. Used when no logger is injected.
type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns an incremental byte stream into discrete events. Feed raw
// chunks with Write and drain completed events with Next. The decoder is
// push-based and has no opinion about where the bytes come from, which is
// what makes the chunk-splitting behavior directly testable.
//
// Not safe for concurrent use; the session controller is the only caller.
type Decoder struct {
	buf strings.Builder

	// A chunk may end in the middle of a CRLF pair. The carriage return is
	// held back until the next chunk so normalization never splits the pair.
	pendingCR bool

	pending []Event
	log     Logger
}

// NewDecoder creates a decoder. logger may be nil.
func NewDecoder(logger Logger) *Decoder {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Decoder{log: logger}
}

// Write appends a raw chunk to the decoder's buffer, normalizing line
// endings, and extracts any records completed by this chunk.
func (d *Decoder) Write(chunk []byte) {
	if d.pendingCR {
		chunk = append([]byte{'\r'}, chunk...)
		d.pendingCR = false
	}
	if len(chunk) > 0 && chunk[len(chunk)-1] == '\r' {
		chunk = chunk[:len(chunk)-1]
		d.pendingCR = true
	}

	// CRLF -> LF so the blank-line record separator is recognized no matter
	// what the transport or any intermediate proxy did to line endings.
	chunk = bytes.ReplaceAll(chunk, []byte("\r\n"), []byte("\n"))
	d.buf.Write(chunk)
	d.extract()
}

// Next returns the next completed event, or ok=false if none is buffered.
func (d *Decoder) Next() (Event, bool) {
	if len(d.pending) == 0 {
		return Event{}, false
	}
	ev := d.pending[0]
	d.pending = d.pending[1:]
	return ev, true
}

// Close performs the end-of-stream scan. Any complete records still in the
// buffer become available via Next; a trailing partial record (one with no
// closing separator) is discarded.
func (d *Decoder) Close() {
	if d.pendingCR {
		// A lone CR at EOF cannot start a CRLF pair anymore.
		d.buf.WriteByte('\r')
		d.pendingCR = false
	}
	d.extract()
	d.buf.Reset()
}

// extract repeatedly scans the buffer for the double-newline separator and
// parses each complete record it finds.
func (d *Decoder) extract() {
	data := d.buf.String()
	for {
		idx := strings.Index(data, "\n\n")
		if idx < 0 {
			break
		}
		record := data[:idx]
		data = data[idx+2:]
		if ev, ok := d.parseRecord(record); ok {
			d.pending = append(d.pending, ev)
		}
	}
	d.buf.Reset()
	d.buf.WriteString(data)
}

// parseRecord parses one record's lines into an event. A record without an
// event name or without data is skipped. Bad JSON is logged and skipped.
func (d *Decoder) parseRecord(record string) (Event, bool) {
	var name string
	var dataLines []string

	for _, line := range strings.Split(record, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
		default:
			// id:, retry:, and comment lines are ignored.
		}
	}

	if name == "" || len(dataLines) == 0 {
		return Event{}, false
	}

	payload := strings.Join(dataLines, "\n")
	if payload == "" {
		return Event{}, false
	}
	if !json.Valid([]byte(payload)) {
		d.log.Printf("sse: dropping malformed %q record (%d bytes)", name, len(payload))
		return Event{}, false
	}
	return Event{Name: name, Data: json.RawMessage(payload)}, true
}

// =============================================================================
// STREAM READER
// =============================================================================

// readBufSize is the read granularity for Reader. The decoder is agnostic
// to chunk size; this only bounds syscall frequency.
const readBufSize = 4096

// Reader pulls events out of an io.Reader, typically a streaming HTTP
// response body. The sequence is finite and non-restartable: after Next
// returns io.EOF the reader is exhausted.
type Reader struct {
	r    io.Reader
	dec  *Decoder
	buf  []byte
	done bool
}

// NewReader wraps r with a decoding reader. logger may be nil.
func NewReader(r io.Reader, logger Logger) *Reader {
	return &Reader{
		r:   r,
		dec: NewDecoder(logger),
		buf: make([]byte, readBufSize),
	}
}

// Next blocks until the next event is available, the stream ends (io.EOF),
// or the underlying read fails. Read errors caused by cancellation surface
// here as-is for the caller to classify.
func (r *Reader) Next() (Event, error) {
	for {
		if ev, ok := r.dec.Next(); ok {
			return ev, nil
		}
		if r.done {
			return Event{}, io.EOF
		}

		n, err := r.r.Read(r.buf)
		if n > 0 {
			r.dec.Write(r.buf[:n])
		}
		if err != nil {
			r.done = true
			r.dec.Close()
			if err != io.EOF {
				return Event{}, err
			}
		}
	}
}
