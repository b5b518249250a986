package store

import (
	"context"
	"sort"
	"sync"

	"github.com/agentexec/core/pkg/models"
)

// MemoryStore is an in-process implementation of EventStore, MessageStore
// and StopSignalStore, for tests and single-process development.
type MemoryStore struct {
	mu sync.RWMutex

	events    map[string][]*models.Event
	eventIDs  map[string]struct{}
	messages  map[string][]*models.Message
	stopped   map[string]bool
	sessions  map[string]*models.Session
	eventSeq  uint64
	msgSeq    uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[string][]*models.Event),
		eventIDs: make(map[string]struct{}),
		messages: make(map[string][]*models.Message),
		stopped:  make(map[string]bool),
		sessions: make(map[string]*models.Session),
	}
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event *models.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID != "" {
		if _, exists := m.eventIDs[event.ID]; exists {
			return event.ID, nil
		}
	}

	m.eventSeq++
	event.InsertSeq = m.eventSeq
	if event.ID != "" {
		m.eventIDs[event.ID] = struct{}{}
	}
	m.events[event.SessionID] = append(m.events[event.SessionID], event)
	return event.ID, nil
}

func (m *MemoryStore) EventsSince(ctx context.Context, sessionID string, since *float64, limit int) ([]*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.events[sessionID]
	out := make([]*models.Event, 0, len(all))
	for _, e := range all {
		if since != nil && !(e.Timestamp > *since) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].InsertSeq < out[j].InsertSeq
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) FinishEvent(ctx context.Context, sessionID string) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.events[sessionID] {
		if e.Type == models.EventFinish {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) AppendMessage(ctx context.Context, message *models.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if message.Role == models.RoleTool {
		found := false
		for _, prior := range m.messages[message.SessionID] {
			for _, tc := range prior.ToolCalls {
				if tc.ID == message.ToolCallID {
					found = true
				}
			}
		}
		if !found {
			return "", ErrNotFound
		}
	}

	m.msgSeq++
	message.InsertSeq = m.msgSeq
	m.messages[message.SessionID] = append(m.messages[message.SessionID], message)
	return message.ID, nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, sessionID string, limit int, order Order) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := append([]*models.Message(nil), m.messages[sessionID]...)
	sort.Slice(all, func(i, j int) bool {
		if order == OrderDescending {
			return all[i].InsertSeq > all[j].InsertSeq
		}
		return all[i].InsertSeq < all[j].InsertSeq
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryStore) LastMessage(ctx context.Context, sessionID string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.messages[sessionID]
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[len(all)-1], nil
}

func (m *MemoryStore) SignalStop(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped[sessionID] = true
	return nil
}

func (m *MemoryStore) IsStopped(ctx context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopped[sessionID], nil
}

func (m *MemoryStore) ClearStop(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stopped, sessionID)
	return nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.ID]; exists {
		return ErrAlreadyExists
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, creatorID string) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Session, 0)
	for _, s := range m.sessions {
		if creatorID == "" || s.CreatorID == creatorID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SetRunning(ctx context.Context, id string, running bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	session.IsRunning = running
	return nil
}

// Set returns a StoreSet backed by this MemoryStore for all roles.
func (m *MemoryStore) Set() StoreSet {
	return StoreSet{Events: m, Messages: m, Stops: m, Sessions: m}
}
