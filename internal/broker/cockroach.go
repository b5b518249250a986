package broker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// CockroachStore is a durable Store backed by CockroachDB (or any
// wire-compatible Postgres) via lib/pq, sharing the connection pool
// conventions of internal/store.CockroachStore.
type CockroachStore struct {
	db *sql.DB
}

// NewCockroachStoreDB wraps an already-open *sql.DB, for callers (and
// tests) that construct the pool themselves, e.g. via go-sqlmock.
func NewCockroachStoreDB(db *sql.DB) *CockroachStore {
	return &CockroachStore{db: db}
}

// Close releases the underlying connection pool.
func (c *CockroachStore) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func (c *CockroachStore) Enqueue(ctx context.Context, sessionID string) (string, error) {
	var existing string
	err := c.db.QueryRowContext(ctx, `
		SELECT id FROM broker_tasks
		WHERE session_id = $1 AND status IN ($2, $3)
		LIMIT 1
	`, sessionID, string(StatusQueued), string(StatusRunning)).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("broker: check existing task: %w", err)
	}

	id := uuid.NewString()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO broker_tasks (id, session_id, status, created_at)
		VALUES ($1, $2, $3, now())
	`, id, sessionID, string(StatusQueued))
	if err != nil {
		return "", fmt.Errorf("broker: enqueue: %w", err)
	}
	return id, nil
}

// Claim uses SELECT ... FOR UPDATE SKIP LOCKED so concurrent worker
// replicas never race on the same row: each picks a different
// claimable task, or finds none and returns ErrNotFound rather than
// blocking on another worker's lock.
func (c *CockroachStore) Claim(ctx context.Context, workerID string, leaseDuration time.Duration) (*Task, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("broker: begin claim tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `
		SELECT id, session_id, status, created_at, claimed_by, claimed_at, lease_expires_at, finished_at, error_message
		FROM broker_tasks
		WHERE status = $1 OR (status = $2 AND lease_expires_at < now())
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, string(StatusQueued), string(StatusRunning))

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("broker: claim scan: %w", err)
	}

	now := time.Now()
	lease := now.Add(leaseDuration)
	_, err = tx.ExecContext(ctx, `
		UPDATE broker_tasks
		SET status = $1, claimed_by = $2, claimed_at = $3, lease_expires_at = $4
		WHERE id = $5
	`, string(StatusRunning), workerID, now, lease, task.ID)
	if err != nil {
		return nil, fmt.Errorf("broker: claim update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("broker: claim commit: %w", err)
	}

	task.Status = StatusRunning
	task.ClaimedBy = workerID
	task.ClaimedAt = &now
	task.LeaseExpiresAt = &lease
	return task, nil
}

func (c *CockroachStore) RenewLease(ctx context.Context, taskID, workerID string, leaseDuration time.Duration) error {
	lease := time.Now().Add(leaseDuration)
	res, err := c.db.ExecContext(ctx, `
		UPDATE broker_tasks SET lease_expires_at = $1
		WHERE id = $2 AND claimed_by = $3 AND status = $4
	`, lease, taskID, workerID, string(StatusRunning))
	if err != nil {
		return fmt.Errorf("broker: renew lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("broker: renew lease rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *CockroachStore) Complete(ctx context.Context, taskID string, status Status, taskErr string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE broker_tasks
		SET status = $1, finished_at = now(), error_message = $2, claimed_by = '', claimed_at = NULL, lease_expires_at = NULL
		WHERE id = $3
	`, string(status), nullableString(taskErr), taskID)
	if err != nil {
		return fmt.Errorf("broker: complete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("broker: complete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *CockroachStore) ReapExpired(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, `
		UPDATE broker_tasks
		SET status = $1, claimed_by = '', claimed_at = NULL, lease_expires_at = NULL
		WHERE status = $2 AND lease_expires_at < now()
	`, string(StatusQueued), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("broker: reap expired: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("broker: reap expired rows affected: %w", err)
	}
	return int(affected), nil
}

func (c *CockroachStore) Get(ctx context.Context, taskID string) (*Task, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, session_id, status, created_at, claimed_by, claimed_at, lease_expires_at, finished_at, error_message
		FROM broker_tasks
		WHERE id = $1
	`, taskID)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("broker: get: %w", err)
	}
	return task, nil
}

func scanTask(s scanner) (*Task, error) {
	var (
		t              Task
		status         string
		claimedBy      sql.NullString
		claimedAt      sql.NullTime
		leaseExpiresAt sql.NullTime
		finishedAt     sql.NullTime
		errorMessage   sql.NullString
	)
	err := s.Scan(&t.ID, &t.SessionID, &status, &t.CreatedAt,
		&claimedBy, &claimedAt, &leaseExpiresAt, &finishedAt, &errorMessage)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.ClaimedBy = claimedBy.String
	if claimedAt.Valid {
		t.ClaimedAt = &claimedAt.Time
	}
	if leaseExpiresAt.Valid {
		t.LeaseExpiresAt = &leaseExpiresAt.Time
	}
	if finishedAt.Valid {
		t.FinishedAt = &finishedAt.Time
	}
	t.Error = errorMessage.String
	return &t, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
