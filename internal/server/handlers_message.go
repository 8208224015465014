package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/websmith-ai/websmith/internal/logging"
	"github.com/websmith-ai/websmith/internal/prompt"
	"github.com/websmith-ai/websmith/internal/store"
	"github.com/websmith-ai/websmith/pkg/types"
)

// CreateMessageRequest represents the request body for creating a message.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// createMessage handles POST /api/sessions/{sessionID}/messages.
//
// It persists the capped user message and an empty assistant row, starts
// the agent loop in the background, and returns the assistant row
// immediately. Progress is observed on the stream or via the step
// endpoints.
func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	sess := s.ownedSession(w, r)
	if sess == nil {
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content is required")
		return
	}

	userMsg := &types.Message{
		SessionID: sess.ID,
		Role:      types.RoleUser,
		Content:   prompt.CapUserInput(req.Content, s.promptCfg),
	}
	if err := s.store.CreateMessage(r.Context(), userMsg); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Empty assistant row created up front so execution steps have a
	// message to attach to while the turn is in flight.
	assistant := &types.Message{
		SessionID: sess.ID,
		Role:      types.RoleAssistant,
	}
	if err := s.store.CreateMessage(r.Context(), assistant); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	if s.settings.EnableAgentLoop && s.loop != nil {
		logging.Info().
			Str("session_id", sess.ID).
			Int64("message_id", assistant.ID).
			Msg("starting agent loop")
		// The loop outlives the request; it must not inherit the
		// request context.
		go s.loop.Run(context.Background(), sess, assistant)
	}

	writeJSON(w, http.StatusOK, assistant)
}

// listMessages handles GET /api/sessions/{sessionID}/messages
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	sess := s.readableSession(w, r)
	if sess == nil {
		return
	}

	messages, err := s.store.ListMessages(r.Context(), sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if messages == nil {
		messages = []*types.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// listExecutionSteps handles
// GET /api/sessions/{sessionID}/messages/{messageID}/execution-steps
func (s *Server) listExecutionSteps(w http.ResponseWriter, r *http.Request) {
	sess := s.readableSession(w, r)
	if sess == nil {
		return
	}

	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid message id")
		return
	}

	steps, err := s.store.ListSteps(r.Context(), sess.ID, messageID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if steps == nil {
		steps = []*types.ExecutionStep{}
	}
	writeJSON(w, http.StatusOK, steps)
}

// latestExecutionSteps handles
// GET /api/sessions/{sessionID}/messages/_internal/latest/execution-steps
//
// One-shot polling endpoint: the steps of the latest assistant message.
func (s *Server) latestExecutionSteps(w http.ResponseWriter, r *http.Request) {
	sess := s.readableSession(w, r)
	if sess == nil {
		return
	}

	latest, err := s.store.LatestAssistantMessage(r.Context(), sess.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, []*types.ExecutionStep{})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	steps, err := s.store.ListSteps(r.Context(), sess.ID, latest.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if steps == nil {
		steps = []*types.ExecutionStep{}
	}
	writeJSON(w, http.StatusOK, steps)
}
