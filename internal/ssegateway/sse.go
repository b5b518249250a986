package ssegateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentexec/core/pkg/models"
)

// streamEvents polls events.EventsSince from watermark until a finish
// event is written, the connection idle timeout elapses, or the client
// disconnects, per spec.md §4.9's polling contract: fixed interval,
// bounded batch size, watermark advanced to the last-seen event's
// timestamp after every batch.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, sessionID string, watermark *float64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	pollInterval := s.config.SSEGateway.PollInterval
	batchSize := s.config.SSEGateway.BatchSize
	idleTimeout := s.config.SSEGateway.IdleTimeout

	ctx := r.Context()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	idleDeadline := time.Now().Add(idleTimeout)

	for {
		events, err := s.stores.Events.EventsSince(ctx, sessionID, watermark, batchSize)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("events_since failed", "session_id", sessionID, "error", err)
			}
			return
		}

		for _, event := range events {
			if !writeSSEFrame(w, event) {
				return
			}
			ts := event.Timestamp
			watermark = &ts
			idleDeadline = time.Now().Add(idleTimeout)

			if event.Type == models.EventFinish {
				flusher.Flush()
				// One additional 0-byte flush closes the connection
				// cleanly after the terminal frame, per spec.md §4.9.
				_, _ = w.Write(nil)
				flusher.Flush()
				return
			}
		}
		flusher.Flush()

		if time.Now().After(idleDeadline) {
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// writeSSEFrame writes one event as an `event:`/`id:`/`data:` frame.
// It reports whether the write succeeded; a write error means the
// client has gone away.
func writeSSEFrame(w http.ResponseWriter, event *models.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		return false
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", event.Type, event.ID, payload)
	return err == nil
}

// parseWatermark parses the optional since_timestamp query parameter.
// An empty value means "from the beginning" per spec.md §4.9.
func parseWatermark(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	var ts float64
	if _, err := fmt.Sscanf(raw, "%g", &ts); err != nil {
		return nil, fmt.Errorf("invalid since_timestamp: %w", err)
	}
	return &ts, nil
}
