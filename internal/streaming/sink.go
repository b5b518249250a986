package streaming

import (
	"github.com/agentexec/core/pkg/models"
)

// EventSink receives a live copy of every emitted event, for in-process
// subscribers (the SSE Gateway's polling loop reads the Store directly
// and does not need a sink; sinks exist for same-process test harnesses
// and future push-based transports).
type EventSink interface {
	Publish(event *models.Event)
}

// MultiSink fans one event out to several sinks.
type MultiSink struct {
	sinks []EventSink
}

// NewMultiSink returns a MultiSink wrapping sinks.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Publish forwards event to every wrapped sink.
func (m *MultiSink) Publish(event *models.Event) {
	for _, s := range m.sinks {
		s.Publish(event)
	}
}

// BackpressureSink buffers events onto a bounded channel for one
// consumer, dropping the oldest undelivered event rather than blocking
// the run when the consumer falls behind. This governs only live
// fan-out; it never affects the durable Store append in emitter.go,
// which always completes before Publish is called.
type BackpressureSink struct {
	ch chan *models.Event
}

// NewBackpressureSink returns a sink with the given buffer size.
func NewBackpressureSink(buffer int) *BackpressureSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &BackpressureSink{ch: make(chan *models.Event, buffer)}
}

// Publish enqueues event, dropping the oldest buffered event if the
// channel is full.
func (b *BackpressureSink) Publish(event *models.Event) {
	select {
	case b.ch <- event:
	default:
		select {
		case <-b.ch:
		default:
		}
		select {
		case b.ch <- event:
		default:
		}
	}
}

// Events returns the channel subscribers read from.
func (b *BackpressureSink) Events() <-chan *models.Event {
	return b.ch
}

// Close releases the underlying channel. Safe to call once.
func (b *BackpressureSink) Close() {
	close(b.ch)
}
