// Package api exposes the medical-intake dialogue over HTTP.
//
// The API is a thin layer over the session manager: clients create a
// session, post patient messages to it, and read back the assistant reply
// with the current dialogue state. Message intents are annotated when a
// generation client is configured.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medpipe/medpipe/internal/genai"
	"github.com/medpipe/medpipe/internal/models"
	"github.com/medpipe/medpipe/internal/session"
)

// IntentDetector classifies user messages; *genai.Client satisfies it.
type IntentDetector interface {
	DetectIntent(ctx context.Context, text string) (genai.Intent, error)
}

// Server handles the HTTP surface of the dialogue service.
type Server struct {
	sessions *session.Manager
	intents  IntentDetector
}

// NewServer creates an API server. The intent detector may be nil; message
// replies are then returned without intent annotation.
func NewServer(sessions *session.Manager, intents IntentDetector) *Server {
	return &Server{sessions: sessions, intents: intents}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleGetSession)
		r.Delete("/{id}", s.handleDeleteSession)
		r.Post("/{id}/messages", s.handlePostMessage)
	})
	return r
}

type createSessionRequest struct {
	Username string `json:"username,omitempty"`
}

type messageRequest struct {
	Message string `json:"message"`
}

// messageResult is the payload returned for a processed turn.
type messageResult struct {
	Reply     string               `json:"reply"`
	State     models.DialogueState `json:"state"`
	TurnCount int                  `json:"turn_count"`
	Intent    string               `json:"intent,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
			return
		}
	}

	sess, err := s.sessions.Create(req.Username)
	if err != nil {
		slog.Error("api.handleCreateSession: create failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to create session"))
		return
	}
	slog.Info("api.handleCreateSession: session created", "session", sess.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List()
	if err != nil {
		slog.Error("api.handleListSessions: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list sessions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if errors.Is(err, models.ErrSessionNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("session not found"))
		return
	}
	if err != nil {
		slog.Error("api.handleGetSession: get failed", "session", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to get session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		slog.Error("api.handleDeleteSession: delete failed", "session", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to delete session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("session deleted", nil))
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("message is required"))
		return
	}

	reply, sess, err := s.sessions.Message(r.Context(), id, req.Message)
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("session not found"))
		return
	case errors.Is(err, models.ErrSessionExpired):
		writeJSONResponse(w, http.StatusGone, models.Error("session expired"))
		return
	case errors.Is(err, models.ErrGeneratorNotConfigured):
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("generation not configured"))
		return
	case err != nil:
		slog.Error("api.handlePostMessage: turn failed", "session", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to process message"))
		return
	}

	result := messageResult{
		Reply:     reply,
		State:     sess.Context.State,
		TurnCount: sess.Context.TurnCount,
	}
	if s.intents != nil {
		if intent, err := s.intents.DetectIntent(r.Context(), req.Message); err == nil {
			result.Intent = intent.Primary
		} else {
			slog.Debug("api.handlePostMessage: intent detection failed", "session", id, "error", err)
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}
