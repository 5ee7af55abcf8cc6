// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse reads and writes Server-Sent Events.
//
// The reader understands the subset of the event-stream format used by the
// research backend: event:, data: and id: fields, comment lines and blank
// line event terminators. The writer is used by the relay to emit frames.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxEventSize is the maximum allowed size of a single event (1 MiB).
const MaxEventSize = 1 << 20

// EventClose is the event name the relay sends after a failure.
const EventClose = "close"

// ErrEventTooLarge is returned when an event exceeds MaxEventSize.
var ErrEventTooLarge = errors.New("sse: event too large")

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("sse: streaming not supported")

// Event is a single server-sent event.
type Event struct {
	Type string // empty means the default "message" event
	ID   string
	Data []byte
}

// =============================================================================
// READER
// =============================================================================

// Reader parses Server-Sent Events from a stream.
type Reader struct {
	reader *bufio.Reader
}

// NewReader creates a new SSE reader from an io.Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next event from the stream.
// Events without data lines are skipped unless they carry an event type.
// Returns io.EOF when the stream ends.
func (s *Reader) ReadEvent() (Event, error) {
	var ev Event
	var dataLines [][]byte
	size := 0
	seen := false

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !(err == io.EOF && len(line) > 0) {
			if err == io.EOF && seen {
				ev.Data = bytes.Join(dataLines, []byte("\n"))
				return ev, nil
			}
			return Event{}, err
		}

		size += len(line)
		if size > MaxEventSize {
			return Event{}, fmt.Errorf("%w: more than %d bytes", ErrEventTooLarge, MaxEventSize)
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line dispatches the event
		if len(line) == 0 {
			if seen {
				ev.Data = bytes.Join(dataLines, []byte("\n"))
				return ev, nil
			}
			continue
		}

		// Comment
		if line[0] == ':' {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			ev.Type = string(value)
			seen = true
		case "data":
			dataLines = append(dataLines, value)
			seen = true
		case "id":
			ev.ID = string(value)
		}
		// retry and unknown fields are ignored
	}
}

// splitField splits "field: value" and strips one leading space from value.
func splitField(line []byte) (string, []byte) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), nil
	}
	value := line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:i]), value
}

// =============================================================================
// WRITER
// =============================================================================

// Writer writes event-stream frames to an HTTP response, flushing after each.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter sets the event-stream headers and wraps w.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent writes a complete event frame.
func (sw *Writer) WriteEvent(ev Event) error {
	var buf bytes.Buffer
	if ev.Type != "" {
		fmt.Fprintf(&buf, "event: %s\n", ev.Type)
	}
	if ev.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", ev.ID)
	}
	for _, line := range bytes.Split(ev.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return sw.write(buf.Bytes())
}

// WriteData writes a default event with the given payload.
func (sw *Writer) WriteData(data []byte) error {
	return sw.WriteEvent(Event{Data: data})
}

// WriteRaw writes a pre-formatted frame line followed by a blank line.
func (sw *Writer) WriteRaw(line string) error {
	return sw.write([]byte(line + "\n\n"))
}

func (sw *Writer) write(p []byte) error {
	if _, err := sw.w.Write(p); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// =============================================================================
// RELAY NORMALIZATION
// =============================================================================

// Normalize turns one upstream line into a relay frame line.
// Lines already carrying a data: field pass through; any other non-empty
// line is wrapped in a data: field. Empty lines yield "".
func Normalize(line string) string {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return ""
	}
	if strings.HasPrefix(line, "data:") {
		return line
	}
	return "data: " + line
}
