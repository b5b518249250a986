// Package store implements the Event & Message Store (C1): durable
// append of events and messages, indexed for polling and resume.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/agentexec/core/pkg/models"
)

// Sentinel errors, following the convention the rest of the store stack
// uses throughout this codebase.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Order controls the direction list_messages returns results in.
type Order string

const (
	OrderAscending  Order = "asc"
	OrderDescending Order = "desc"
)

// EventStore is the append-only Event ledger of C1.
type EventStore interface {
	// AppendEvent fails with a persistence error on I/O, never on
	// content; appending an event whose ID already exists is a no-op
	// that returns the existing ID (idempotent on duplicate event id).
	AppendEvent(ctx context.Context, event *models.Event) (string, error)

	// EventsSince returns events with timestamp > since (all events if
	// since is nil), ordered canonically (timestamp, insert_seq),
	// bounded by limit.
	EventsSince(ctx context.Context, sessionID string, since *float64, limit int) ([]*models.Event, error)

	// FinishEvent returns the sole finish event for a session, if any.
	FinishEvent(ctx context.Context, sessionID string) (*models.Event, error)
}

// MessageStore is the append-only Message ledger of C1.
type MessageStore interface {
	// AppendMessage enforces the InvariantError contract on role=tool
	// messages that reference no prior assistant tool_call in the
	// session (implementer choice: this store enforces).
	AppendMessage(ctx context.Context, message *models.Message) (string, error)

	// ListMessages returns a session's messages in the given order,
	// bounded by limit (0 = unbounded), for history rehydration.
	ListMessages(ctx context.Context, sessionID string, limit int, order Order) ([]*models.Message, error)

	// LastMessage returns the most recently appended message for a
	// session, or ErrNotFound if the session has no messages.
	LastMessage(ctx context.Context, sessionID string) (*models.Message, error)
}

// StopSignalStore persists the explicit-stop marker of spec.md §4.9,
// supplementing the control-endpoint's "persisting a stop marker the
// orchestrator observes" option; see SPEC_FULL.md.
type StopSignalStore interface {
	SignalStop(ctx context.Context, sessionID string) error
	IsStopped(ctx context.Context, sessionID string) (bool, error)
	ClearStop(ctx context.Context, sessionID string) error
}

// SessionStore persists the Session identity records of spec.md §3.
// It is not one of the ten named components, but the SSE Gateway (C9)
// needs session ownership lookups for its authorisation check, and the
// Task Orchestrator (C8) needs to flip is_running — both belong beside
// the rest of the Store rather than duplicated per caller.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, creatorID string) ([]*models.Session, error)
	SetRunning(ctx context.Context, id string, running bool) error
}

// StoreSet groups the stores behind one Close.
type StoreSet struct {
	Events   EventStore
	Messages MessageStore
	Stops    StopSignalStore
	Sessions SessionStore

	closer func() error
}

// Close releases any underlying resources (e.g. a database connection
// pool).
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// TTLPolicy configures retention for events and messages. Per
// SPEC_FULL.md's decision on spec.md §9's open question (c): message TTL
// is independent of and longer than event TTL.
type TTLPolicy struct {
	EventTTL   time.Duration
	MessageTTL time.Duration
}

// DefaultTTLPolicy matches spec.md's stated default event TTL of 7 days.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		EventTTL:   7 * 24 * time.Hour,
		MessageTTL: 30 * 24 * time.Hour,
	}
}
