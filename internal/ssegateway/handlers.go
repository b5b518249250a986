package ssegateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/agentexec/core/internal/auth"
	"github.com/agentexec/core/internal/errs"
	"github.com/agentexec/core/internal/store"
	"github.com/agentexec/core/pkg/models"
)

// mountRoutes registers the seven control-surface endpoints of
// spec.md §6 on an authenticated mux.
func (s *Server) mountRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/apps/{sid}/agent/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/apps/{sid}/agent/stream-continue", s.handleStreamContinue)
	mux.HandleFunc("POST /api/apps/{sid}/agent/stop", s.handleStop)
	mux.HandleFunc("GET /api/apps/{sid}/agent/history", s.handleHistory)
}

type createSessionRequest struct {
	Name      string           `json:"name"`
	Framework models.Framework `json:"framework"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Framework != models.FrameworkNextJS && req.Framework != models.FrameworkFastAPIVite {
		writeError(w, http.StatusBadRequest, "framework must be nextjs or fastapi-vite")
		return
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:          uuid.NewString(),
		DisplayName: req.Name,
		Framework:   req.Framework,
		WorkspaceID: uuid.NewString(),
		CreatorID:   user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.stores.Sessions.CreateSession(r.Context(), session); err != nil {
		writeError(w, http.StatusInternalServerError, "create session failed")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	sessions, err := s.stores.Sessions.ListSessions(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list sessions failed")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authorizeSession(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sid")
	session, ok := s.authorizeSession(w, r, sessionID)
	if !ok {
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	// The user message is appended synchronously before the task is
	// enqueued: the container rediscovers the prompt from the Store
	// rather than carrying it in the task payload (spec.md §4.9).
	message := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   req.Prompt,
	}
	if _, err := s.stores.Messages.AppendMessage(r.Context(), message); err != nil {
		if errs.Is(err, errs.KindInvariant) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "append message failed")
		return
	}

	if err := s.stores.Stops.ClearStop(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "clear stop signal failed")
		return
	}
	if err := s.tasks.Enqueue(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "enqueue task failed")
		return
	}
	if s.metrics != nil {
		s.metrics.MessageAppended(string(session.Framework))
	}

	watermark := watermarkNow()
	s.streamEvents(w, r, sessionID, &watermark)
}

func (s *Server) handleStreamContinue(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sid")
	if _, ok := s.authorizeSession(w, r, sessionID); !ok {
		return
	}

	watermark, err := parseWatermark(r.URL.Query().Get("since_timestamp"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.streamEvents(w, r, sessionID, watermark)
}

type stopResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sid")
	if _, ok := s.authorizeSession(w, r, sessionID); !ok {
		return
	}

	if err := s.stores.Stops.SignalStop(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "signal stop failed")
		return
	}
	writeJSON(w, http.StatusOK, stopResponse{Success: true})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sid")
	if _, ok := s.authorizeSession(w, r, sessionID); !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := s.stores.Messages.ListMessages(r.Context(), sessionID, limit, store.OrderAscending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list messages failed")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// authorizeSession loads the session and enforces the two authorisation
// paths spec.md §4.9 names: the owning bearer-token user, or the
// protocol-peer variant (X-API-Key equal to the session id) used by the
// agent container calling back into the Gateway during its own run.
func (s *Server) authorizeSession(w http.ResponseWriter, r *http.Request, sessionID string) (*models.Session, bool) {
	session, err := s.stores.Sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
		} else {
			writeError(w, http.StatusInternalServerError, "get session failed")
		}
		return nil, false
	}

	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		if apiKey == sessionID {
			return session, true
		}
		writeError(w, http.StatusForbidden, "invalid api key")
		return nil, false
	}

	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return nil, false
	}
	if session.CreatorID != user.ID {
		writeError(w, http.StatusForbidden, "not the session owner")
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// watermarkNow returns the current time as the epoch-seconds watermark
// used to start a generate call's stream: only events written from this
// point on are relevant, since the run hasn't started yet.
func watermarkNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
