package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/agentexec/core/pkg/models"
)

// PoolConfig configures the underlying *sql.DB connection pool.
type PoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CockroachStore is a durable EventStore/MessageStore/StopSignalStore
// backed by CockroachDB (or any wire-compatible Postgres) via lib/pq.
type CockroachStore struct {
	db *sql.DB
}

// NewCockroachStore opens a connection pool against cfg.DSN and verifies
// it with Ping before returning.
func NewCockroachStore(ctx context.Context, cfg PoolConfig) (*CockroachStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &CockroachStore{db: db}, nil
}

// NewCockroachStoreDB wraps an already-open *sql.DB, for callers (and
// tests) that construct the pool themselves, e.g. via go-sqlmock.
func NewCockroachStoreDB(db *sql.DB) *CockroachStore {
	return &CockroachStore{db: db}
}

// Set returns a StoreSet backed by this CockroachStore, closing the
// underlying pool on Close.
func (c *CockroachStore) Set() StoreSet {
	return StoreSet{Events: c, Messages: c, Stops: c, Sessions: c, closer: c.db.Close}
}

// scanner abstracts over *sql.Row and *sql.Rows so row-mapping helpers
// work for both single-row and multi-row queries.
type scanner interface {
	Scan(dest ...any) error
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (c *CockroachStore) AppendEvent(ctx context.Context, event *models.Event) (string, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return "", fmt.Errorf("store: marshal event data: %w", err)
	}
	namespace, err := json.Marshal(event.Namespace)
	if err != nil {
		return "", fmt.Errorf("store: marshal namespace: %w", err)
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return "", fmt.Errorf("store: marshal metadata: %w", err)
	}

	row := c.db.QueryRowContext(ctx, `
		INSERT INTO events (id, session_id, timestamp, event_type, agent_name, namespace, data, message_id, trace_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET id = events.id
		RETURNING id, insert_seq
	`, event.ID, event.SessionID, event.Timestamp, string(event.Type),
		nullableString(event.AgentName), namespace, data,
		nullableString(event.MessageID), nullableString(event.TraceID), metadata)

	var id string
	var seq uint64
	if err := row.Scan(&id, &seq); err != nil {
		return "", fmt.Errorf("store: append event: %w", err)
	}
	event.InsertSeq = seq
	return id, nil
}

func (c *CockroachStore) EventsSince(ctx context.Context, sessionID string, since *float64, limit int) ([]*models.Event, error) {
	query := `
		SELECT id, session_id, timestamp, insert_seq, event_type, agent_name, namespace, data, message_id, trace_id, metadata
		FROM events
		WHERE session_id = $1 AND ($2::float8 IS NULL OR timestamp > $2)
		ORDER BY timestamp ASC, insert_seq ASC
	`
	args := []any{sessionID, since}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: events since: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *CockroachStore) FinishEvent(ctx context.Context, sessionID string) (*models.Event, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, session_id, timestamp, insert_seq, event_type, agent_name, namespace, data, message_id, trace_id, metadata
		FROM events
		WHERE session_id = $1 AND event_type = $2
		LIMIT 1
	`, sessionID, string(models.EventFinish))

	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: finish event: %w", err)
	}
	return e, nil
}

func scanEvent(s scanner) (*models.Event, error) {
	var e models.Event
	var agentName, messageID, traceID sql.NullString
	var namespace, data, metadata []byte

	err := s.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.InsertSeq, &e.Type,
		&agentName, &namespace, &data, &messageID, &traceID, &metadata)
	if err != nil {
		return nil, err
	}
	e.AgentName = agentName.String
	e.MessageID = messageID.String
	e.TraceID = traceID.String
	if len(namespace) > 0 {
		if err := json.Unmarshal(namespace, &e.Namespace); err != nil {
			return nil, fmt.Errorf("store: unmarshal namespace: %w", err)
		}
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.Data); err != nil {
			return nil, fmt.Errorf("store: unmarshal event data: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal metadata: %w", err)
		}
	}
	return &e, nil
}

func (c *CockroachStore) AppendMessage(ctx context.Context, message *models.Message) (string, error) {
	if message.Role == models.RoleTool {
		var exists bool
		err := c.db.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM messages
				WHERE session_id = $1 AND tool_calls @> $2::jsonb
			)
		`, message.SessionID, fmt.Sprintf(`[{"id": %q}]`, message.ToolCallID)).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("store: check tool_call: %w", err)
		}
		if !exists {
			return "", ErrNotFound
		}
	}

	contentParts, err := json.Marshal(message.ContentParts)
	if err != nil {
		return "", fmt.Errorf("store: marshal content_parts: %w", err)
	}
	toolCalls, err := json.Marshal(message.ToolCalls)
	if err != nil {
		return "", fmt.Errorf("store: marshal tool_calls: %w", err)
	}
	metadata, err := json.Marshal(message.Metadata)
	if err != nil {
		return "", fmt.Errorf("store: marshal metadata: %w", err)
	}

	var parentID *string
	if message.ParentID != nil {
		parentID = message.ParentID
	}

	row := c.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, session_id, parent_id, role, agent_name, content, content_parts, tool_call_id, tool_calls, trace_id, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, insert_seq
	`, message.ID, message.SessionID, parentID, string(message.Role),
		nullableAgentName(message.AgentName), message.Content, contentParts,
		nullableString(message.ToolCallID), toolCalls, nullableString(message.TraceID),
		message.Timestamp, metadata)

	var id string
	var seq uint64
	if err := row.Scan(&id, &seq); err != nil {
		return "", fmt.Errorf("store: append message: %w", err)
	}
	message.InsertSeq = seq
	return id, nil
}

func nullableAgentName(name *string) sql.NullString {
	if name == nil {
		return sql.NullString{}
	}
	return nullableString(*name)
}

func (c *CockroachStore) ListMessages(ctx context.Context, sessionID string, limit int, order Order) ([]*models.Message, error) {
	direction := "ASC"
	if order == OrderDescending {
		direction = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT id, session_id, parent_id, role, agent_name, content, content_parts, tool_call_id, tool_calls, trace_id, timestamp, insert_seq, metadata
		FROM messages
		WHERE session_id = $1
		ORDER BY insert_seq %s
	`, direction)
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (c *CockroachStore) LastMessage(ctx context.Context, sessionID string) (*models.Message, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, session_id, parent_id, role, agent_name, content, content_parts, tool_call_id, tool_calls, trace_id, timestamp, insert_seq, metadata
		FROM messages
		WHERE session_id = $1
		ORDER BY insert_seq DESC
		LIMIT 1
	`, sessionID)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: last message: %w", err)
	}
	return msg, nil
}

func scanMessage(s scanner) (*models.Message, error) {
	var m models.Message
	var parentID sql.NullString
	var agentName, toolCallID, traceID sql.NullString
	var contentParts, toolCalls, metadata []byte

	err := s.Scan(&m.ID, &m.SessionID, &parentID, &m.Role, &agentName, &m.Content,
		&contentParts, &toolCallID, &toolCalls, &traceID, &m.Timestamp, &m.InsertSeq, &metadata)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		m.ParentID = &parentID.String
	}
	if agentName.Valid {
		m.AgentName = &agentName.String
	}
	m.ToolCallID = toolCallID.String
	m.TraceID = traceID.String
	if len(contentParts) > 0 {
		if err := json.Unmarshal(contentParts, &m.ContentParts); err != nil {
			return nil, fmt.Errorf("store: unmarshal content_parts: %w", err)
		}
	}
	if len(toolCalls) > 0 {
		if err := json.Unmarshal(toolCalls, &m.ToolCalls); err != nil {
			return nil, fmt.Errorf("store: unmarshal tool_calls: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal metadata: %w", err)
		}
	}
	return &m, nil
}

func (c *CockroachStore) SignalStop(ctx context.Context, sessionID string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO stop_signals (session_id, stopped_at)
		VALUES ($1, now())
		ON CONFLICT (session_id) DO UPDATE SET stopped_at = now()
	`, sessionID)
	if err != nil {
		return fmt.Errorf("store: signal stop: %w", err)
	}
	return nil
}

func (c *CockroachStore) IsStopped(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM stop_signals WHERE session_id = $1)
	`, sessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: is stopped: %w", err)
	}
	return exists, nil
}

func (c *CockroachStore) ClearStop(ctx context.Context, sessionID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM stop_signals WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("store: clear stop: %w", err)
	}
	return nil
}

func (c *CockroachStore) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO sessions (id, display_name, framework, workspace_id, creator_id, is_running, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, session.ID, session.DisplayName, string(session.Framework), session.WorkspaceID, session.CreatorID, session.IsRunning)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

func (c *CockroachStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, display_name, framework, workspace_id, creator_id, is_running, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return session, nil
}

func (c *CockroachStore) ListSessions(ctx context.Context, creatorID string) ([]*models.Session, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, display_name, framework, workspace_id, creator_id, is_running, created_at, updated_at
		FROM sessions
		WHERE $1 = '' OR creator_id = $1
		ORDER BY created_at ASC
	`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func (c *CockroachStore) SetRunning(ctx context.Context, id string, running bool) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE sessions SET is_running = $2, updated_at = now() WHERE id = $1
	`, id, running)
	if err != nil {
		return fmt.Errorf("store: set running: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set running: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSession(s scanner) (*models.Session, error) {
	var session models.Session
	var framework string
	err := s.Scan(&session.ID, &session.DisplayName, &framework, &session.WorkspaceID,
		&session.CreatorID, &session.IsRunning, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}
	session.Framework = models.Framework(framework)
	return &session, nil
}

// isUniqueViolation reports whether err is a Postgres/CockroachDB unique
// constraint violation (SQLSTATE 23505), without importing lib/pq's
// error type directly so this stays driver-agnostic at the call site.
func isUniqueViolation(err error) bool {
	type sqlStater interface{ SQLState() string }
	if pqErr, ok := err.(sqlStater); ok {
		return pqErr.SQLState() == "23505"
	}
	return false
}

// DeleteEventsOlderThan deletes events whose timestamp predates cutoff,
// for use by the TTL sweep in ttl.go.
func (c *CockroachStore) DeleteEventsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM events WHERE to_timestamp(timestamp) < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: sweep events: %w", err)
	}
	return res.RowsAffected()
}

// DeleteMessagesOlderThan deletes messages whose timestamp predates
// cutoff, for use by the TTL sweep in ttl.go.
func (c *CockroachStore) DeleteMessagesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM messages WHERE to_timestamp(timestamp) < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: sweep messages: %w", err)
	}
	return res.RowsAffected()
}
