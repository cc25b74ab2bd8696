package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/duckview/internal/model"
	"github.com/seantiz/duckview/internal/view"
)

// handleStreamEvents streams view snapshots as server-sent events: the
// current snapshot first, then one per state change until the view is
// unmounted or the client goes away.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v, err := s.views.Get(id)
	if errors.Is(err, view.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "view not mounted")
		return
	}

	// Subscribe before taking the first snapshot so no change falls between.
	ch, unsub := s.views.Broker().Subscribe(id)
	defer unsub()

	eventStreams.Inc()
	defer eventStreams.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	send := func(snap view.Snapshot) error {
		resp, err := newSnapshotResponse(snap)
		if err != nil {
			return err
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		if err := writeSSEEvent(w, "snapshot", string(data)); err != nil {
			return err
		}
		if canFlush {
			flusher.Flush()
		}
		return nil
	}

	done := func() {
		_ = writeSSEEvent(w, "done", "view unmounted")
		if canFlush {
			flusher.Flush()
		}
	}

	first := v.Snapshot()
	if err := send(first); err != nil {
		return
	}
	// Unmounted between lookup and subscribe: the topic was already closed.
	if first.State == model.StateUnmounted {
		done()
		return
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				done()
				return
			}
			if err := send(snap); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
