package ssegateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentexec/core/internal/auth"
	"github.com/agentexec/core/internal/config"
	"github.com/agentexec/core/internal/store"
	"github.com/agentexec/core/pkg/models"
)

type fakeEnqueuer struct {
	sessionIDs []string
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, sessionID string) error {
	f.sessionIDs = append(f.sessionIDs, sessionID)
	return nil
}

func newTestServer(t *testing.T) (*Server, *store.MemoryStore, *fakeEnqueuer) {
	t.Helper()
	mem := store.NewMemoryStore()
	cfg := &config.Config{}
	cfg.SSEGateway.PollInterval = 10 * time.Millisecond
	cfg.SSEGateway.BatchSize = 100
	cfg.SSEGateway.IdleTimeout = 200 * time.Millisecond
	tasks := &fakeEnqueuer{}
	// auth disabled (empty JWKS URL): requests need no bearer token,
	// matching local/dev runs (see internal/auth.Service.Enabled).
	authService := auth.NewService(auth.Config{})
	s := NewServer(cfg, mem.Set(), tasks, authService, nil, nil)
	return s, mem, tasks
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), &models.User{ID: userID}))
}

func TestHandleCreateAndGetSession(t *testing.T) {
	s, _, _ := newTestServer(t)
	mux := http.NewServeMux()
	s.mountRoutes(mux)

	body := bytes.NewBufferString(`{"name":"demo","framework":"nextjs"}`)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/sessions", body), "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created models.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created session: %v", err)
	}
	if created.CreatorID != "user-1" {
		t.Errorf("CreatorID = %q, want user-1", created.CreatorID)
	}

	getReq := withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/"+created.ID, nil), "user-1")
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get session status = %d", getRec.Code)
	}

	otherReq := withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/"+created.ID, nil), "user-2")
	otherRec := httptest.NewRecorder()
	mux.ServeHTTP(otherRec, otherReq)
	if otherRec.Code != http.StatusForbidden {
		t.Errorf("cross-user get status = %d, want 403", otherRec.Code)
	}
}

func TestHandleGenerateEnqueuesAndStreams(t *testing.T) {
	s, mem, tasks := newTestServer(t)
	mux := http.NewServeMux()
	s.mountRoutes(mux)

	session := &models.Session{ID: "sess-1", CreatorID: "user-1", Framework: models.FrameworkNextJS}
	if err := mem.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = mem.AppendEvent(context.Background(), &models.Event{
			ID:        "evt-1",
			SessionID: "sess-1",
			Type:      models.EventFinish,
			Timestamp: watermarkNow(),
			Data:      models.EventData{Status: models.FinishSuccess},
		})
	}()

	body := bytes.NewBufferString(`{"prompt":"hello"}`)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/apps/sess-1/agent/generate", body), "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(tasks.sessionIDs) != 1 || tasks.sessionIDs[0] != "sess-1" {
		t.Errorf("Enqueue called with %v, want [sess-1]", tasks.sessionIDs)
	}
	if !strings.Contains(rec.Body.String(), "event: finish") {
		t.Errorf("stream body missing finish frame: %s", rec.Body.String())
	}

	msgs, err := mem.ListMessages(context.Background(), "sess-1", 0, store.OrderAscending)
	if err != nil || len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("ListMessages = %+v, %v", msgs, err)
	}
}

func TestHandleStopSignalsAndAcknowledges(t *testing.T) {
	s, mem, _ := newTestServer(t)
	mux := http.NewServeMux()
	s.mountRoutes(mux)

	session := &models.Session{ID: "sess-2", CreatorID: "user-1"}
	if err := mem.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/apps/sess-2/agent/stop", nil), "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	stopped, err := mem.IsStopped(context.Background(), "sess-2")
	if err != nil || !stopped {
		t.Errorf("IsStopped = %v, %v, want true", stopped, err)
	}
}

func TestHandleGenerateProtocolPeerAuth(t *testing.T) {
	s, mem, _ := newTestServer(t)
	mux := http.NewServeMux()
	s.mountRoutes(mux)

	session := &models.Session{ID: "sess-3", CreatorID: "user-1"}
	if err := mem.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/apps/sess-3/agent/history", nil)
	req.Header.Set("X-API-Key", "sess-3")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history with matching api key status = %d", rec.Code)
	}

	badReq := httptest.NewRequest(http.MethodGet, "/api/apps/sess-3/agent/history", nil)
	badReq.Header.Set("X-API-Key", "wrong-session")
	badRec := httptest.NewRecorder()
	mux.ServeHTTP(badRec, badReq)
	if badRec.Code != http.StatusForbidden {
		t.Errorf("history with mismatched api key status = %d, want 403", badRec.Code)
	}
}
