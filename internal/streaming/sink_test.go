package streaming

import (
	"testing"

	"github.com/agentexec/core/pkg/models"
)

func TestMultiSinkFansOutToAll(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := NewMultiSink(a, b)

	m.Publish(&models.Event{ID: "evt-1"})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("a=%d b=%d, want 1 each", len(a.events), len(b.events))
	}
}

func TestBackpressureSinkDropsOldestWhenFull(t *testing.T) {
	b := NewBackpressureSink(2)
	defer b.Close()

	b.Publish(&models.Event{ID: "1"})
	b.Publish(&models.Event{ID: "2"})
	b.Publish(&models.Event{ID: "3"})

	first := <-b.Events()
	second := <-b.Events()
	if first.ID != "2" || second.ID != "3" {
		t.Fatalf("got %s, %s; want oldest (1) dropped", first.ID, second.ID)
	}
}
