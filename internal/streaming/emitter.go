// Package streaming implements the Streaming Runtime (C7): the per-run
// driver that consumes the Graph Orchestrator's output and translates
// it into persisted Events and Messages.
package streaming

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/agentexec/core/internal/store"
	"github.com/agentexec/core/pkg/models"
)

// Emitter assigns each event a monotonic timestamp/insert-order within
// one run and appends it to the Event Store, then fans it out to any
// attached sinks for live delivery.
type Emitter struct {
	sessionID string
	events    store.EventStore
	sinks     []EventSink
	seq       atomic.Uint64
}

// NewEmitter returns an Emitter appending into events and fanning out to
// sinks (which may be empty).
func NewEmitter(sessionID string, events store.EventStore, sinks ...EventSink) *Emitter {
	return &Emitter{sessionID: sessionID, events: events, sinks: sinks}
}

// Emit stamps event with this run's session id and a fresh timestamp,
// appends it durably, then fans out to sinks. The durable append always
// happens; sinks may drop live delivery under backpressure (see
// sink.go) but the Store write never does. messageID is empty for
// event types spec.md's message-id discipline doesn't apply to; for
// llm_stream and message_complete the caller passes the id of the
// logical assistant message the event belongs to, so consumers can
// group a stream by message_id per spec.md §3.
func (e *Emitter) Emit(ctx context.Context, eventType models.EventType, agentName string, namespace []string, messageID string, data models.EventData) (*models.Event, error) {
	event := &models.Event{
		SessionID: e.sessionID,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Type:      eventType,
		AgentName: agentName,
		Namespace: namespace,
		MessageID: messageID,
		Data:      data,
	}
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		event.TraceID = traceID
	}

	id, err := e.events.AppendEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	event.ID = id

	for _, s := range e.sinks {
		s.Publish(event)
	}
	return event, nil
}

type traceIDKey struct{}

// WithTraceID binds a trace id that subsequent Emit calls on ctx will
// stamp onto every event they produce.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}
