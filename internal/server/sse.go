package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clintjohnsn/pytchdeck/internal/types"
)

// SSE event names
const (
	EventStep     = "step"
	EventComplete = "complete"
	EventError    = "error"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(body ErrorResponse) {
	s.WriteEvent(EventError, body) //nolint:errcheck
}

// WriteComplete sends the final deck link
func (s *SSEWriter) WriteComplete(threadID string, out *types.PitchOutput) {
	s.WriteEvent(EventComplete, map[string]string{ //nolint:errcheck
		"thread_id": threadID,
		"link":      out.Link,
		"title":     out.Title,
	})
}
