// Package sse implements the Server-Sent-Events framing used by the
// streaming endpoints: one JSON object per event, sent as a bare
// "data:" line.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter sets the SSE response headers and returns a writer bound to
// w. Fails if the underlying writer cannot be flushed.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteJSON marshals v and sends it as a single event. Each event is
// flushed immediately so the client sees chunks as they are produced.
func (w *Writer) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	w.flusher.Flush()
	return nil
}
