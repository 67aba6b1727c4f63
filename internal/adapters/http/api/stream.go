// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StreamHandler serves the live notice stream over SSE.
type StreamHandler struct {
	deps Dependencies
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps Dependencies) *StreamHandler {
	return &StreamHandler{deps: deps}
}

// HandleStream handles GET /api/events/{id}/stream requests. Each
// notice goes out as one SSE message whose event field is the notice
// name and whose data field is the JSON payload. The stream ends when
// the client disconnects or the hub shuts down.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", errors.New("streaming unsupported"))
		return
	}

	ch, err := h.deps.Subscribe(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case notice, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(notice.Payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", notice.Name, data)
			flusher.Flush()
		}
	}
}
