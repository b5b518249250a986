package streaming

import (
	"testing"

	"github.com/agentexec/core/pkg/models"
)

func TestNormalizeEventTypeMapsLegacyAliases(t *testing.T) {
	cases := map[string]models.EventType{
		"run.started":  models.EventAgentStart,
		"model.delta":  models.EventLLMStream,
		"run.finished": models.EventFinish,
	}
	for legacy, want := range cases {
		if got := NormalizeEventType(legacy); got != want {
			t.Fatalf("NormalizeEventType(%q) = %q, want %q", legacy, got, want)
		}
	}
}

func TestNormalizeEventTypePassesThroughCanonical(t *testing.T) {
	if got := NormalizeEventType("tool_start"); got != models.EventToolStart {
		t.Fatalf("got = %q, want tool_start unchanged", got)
	}
}
