package streaming

import "github.com/agentexec/core/pkg/models"

// legacyEventTypeAliases maps dotted event-type spellings an older
// producer might still emit onto the canonical snake_case taxonomy, per
// spec.md §6: implementations must not invent new synonyms, but readers
// tolerate inherited ones.
var legacyEventTypeAliases = map[string]models.EventType{
	"run.started":     models.EventAgentStart,
	"node.started":    models.EventNodeStart,
	"model.delta":     models.EventLLMStream,
	"message.done":    models.EventMessageComplete,
	"tool.started":    models.EventToolStart,
	"tool.finished":   models.EventToolEnd,
	"node.finished":   models.EventNodeEnd,
	"stage.changed":   models.EventStageChange,
	"run.error":       models.EventAgentError,
	"run.finished":    models.EventFinish,
}

// NormalizeEventType maps a legacy dotted spelling to its canonical
// snake_case form, or returns raw unchanged if it is not a known alias
// (including when it is already canonical).
func NormalizeEventType(raw string) models.EventType {
	if canonical, ok := legacyEventTypeAliases[raw]; ok {
		return canonical
	}
	return models.EventType(raw)
}
