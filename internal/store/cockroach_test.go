package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/agentexec/core/pkg/models"
)

func TestCockroachStoreAppendEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cs := NewCockroachStoreDB(db)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO events`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "insert_seq"}).AddRow("evt-1", 1))

	id, err := cs.AppendEvent(ctx, &models.Event{
		ID:        "evt-1",
		SessionID: "s1",
		Timestamp: 1000,
		Type:      models.EventAgentStart,
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if id != "evt-1" {
		t.Fatalf("id = %q, want evt-1", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCockroachStoreEventsSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cs := NewCockroachStoreDB(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{
		"id", "session_id", "timestamp", "insert_seq", "event_type",
		"agent_name", "namespace", "data", "message_id", "trace_id", "metadata",
	}).AddRow("evt-1", "s1", 1000.0, 1, "agent_start", nil, nil, []byte(`{}`), nil, nil, nil)

	mock.ExpectQuery(`SELECT id, session_id, timestamp, insert_seq, event_type`).
		WillReturnRows(rows)

	got, err := cs.EventsSince(ctx, "s1", nil, 0)
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(got) != 1 || got[0].ID != "evt-1" {
		t.Fatalf("got = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCockroachStoreFinishEventNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cs := NewCockroachStoreDB(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, session_id, timestamp, insert_seq, event_type`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_id", "timestamp", "insert_seq", "event_type",
			"agent_name", "namespace", "data", "message_id", "trace_id", "metadata",
		}))

	if _, err := cs.FinishEvent(ctx, "s1"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCockroachStoreSignalStop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cs := NewCockroachStoreDB(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO stop_signals`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := cs.SignalStop(ctx, "s1"); err != nil {
		t.Fatalf("SignalStop: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCockroachStoreCreateSessionDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cs := NewCockroachStoreDB(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnError(&fakeUniqueViolation{})

	err = cs.CreateSession(ctx, &models.Session{ID: "s1", CreatorID: "u1", Framework: models.FrameworkNextJS})
	if err != ErrAlreadyExists {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

type fakeUniqueViolation struct{}

func (*fakeUniqueViolation) Error() string    { return "duplicate key value violates unique constraint" }
func (*fakeUniqueViolation) SQLState() string { return "23505" }

func TestCockroachStoreGetSessionNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cs := NewCockroachStoreDB(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, display_name, framework, workspace_id, creator_id, is_running, created_at, updated_at`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "display_name", "framework", "workspace_id", "creator_id", "is_running", "created_at", "updated_at",
		}))

	if _, err := cs.GetSession(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCockroachStoreListSessions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cs := NewCockroachStoreDB(db)
	ctx := context.Background()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "display_name", "framework", "workspace_id", "creator_id", "is_running", "created_at", "updated_at",
	}).AddRow("s1", "todo app", "nextjs", "ws-1", "u1", false, now, now)

	mock.ExpectQuery(`SELECT id, display_name, framework, workspace_id, creator_id, is_running, created_at, updated_at`).
		WillReturnRows(rows)

	got, err := cs.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("got = %+v", got)
	}
	if got[0].Framework != models.FrameworkNextJS {
		t.Fatalf("Framework = %q, want nextjs", got[0].Framework)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCockroachStoreSetRunningNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cs := NewCockroachStoreDB(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE sessions SET is_running`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := cs.SetRunning(ctx, "missing", true); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCockroachStoreDeleteEventsOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cs := NewCockroachStoreDB(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM events`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := cs.DeleteEventsOlderThan(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteEventsOlderThan: %v", err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
}
