package server

import (
	"encoding/json"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/websmith-ai/websmith/internal/logging"
	"github.com/websmith-ai/websmith/pkg/types"
)

// CreateSessionRequest represents the request body for creating a session.
type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// UpdateSessionRequest represents the request body for updating a session.
type UpdateSessionRequest struct {
	Title  *string `json:"title"`
	Public *bool   `json:"is_public"`
}

// listSessions handles GET /api/sessions
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	claims := currentUser(r.Context())

	sessions, err := s.store.ListSessions(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Ensure we return an empty array [] instead of null
	if sessions == nil {
		sessions = []*types.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// createSession handles POST /api/sessions
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	claims := currentUser(r.Context())

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	sess := &types.Session{
		ID:     ulid.Make().String(),
		UserID: claims.UserID,
		Title:  req.Title,
	}
	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	if err := s.sandbox.Initialize(sess.UserID, sess.ID); err != nil {
		logging.Error().Err(err).Str("session_id", sess.ID).Msg("failed to initialize sandbox")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to initialize sandbox")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// getSession handles GET /api/sessions/{sessionID}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess := s.ownedSession(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// updateSession handles PUT /api/sessions/{sessionID}
func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.ownedSession(w, r)
	if sess == nil {
		return
	}

	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.Title != nil {
		sess.Title = *req.Title
	}
	if req.Public != nil {
		sess.Public = *req.Public
	}

	if err := s.store.UpdateSession(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// deleteSession handles DELETE /api/sessions/{sessionID}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess := s.ownedSession(w, r)
	if sess == nil {
		return
	}

	if err := s.sandbox.DeleteSession(sess.UserID, sess.ID); err != nil {
		logging.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to delete sandbox")
	}

	if err := s.store.DeleteSession(r.Context(), sess.ID); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
