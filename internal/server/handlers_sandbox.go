package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/websmith-ai/websmith/internal/sandbox"
)

// FileUpdateRequest represents the request body for writing a file.
type FileUpdateRequest struct {
	Content string `json:"content"`
}

// listFiles handles GET /api/sessions/{sessionID}/sandbox/files
func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	sess := s.ownedSession(w, r)
	if sess == nil {
		return
	}

	files, err := s.sandbox.List(sess.UserID, sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, files)
}

// readFile handles GET /api/sessions/{sessionID}/sandbox/files/{filename}
func (s *Server) readFile(w http.ResponseWriter, r *http.Request) {
	sess := s.ownedSession(w, r)
	if sess == nil {
		return
	}
	filename := chi.URLParam(r, "filename")

	content, err := s.sandbox.Read(sess.UserID, sess.ID, filename)
	if errors.Is(err, sandbox.ErrFileNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("File not found: %s", filename))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"filename": filename,
		"content":  string(content),
	})
}

// writeFile handles POST /api/sessions/{sessionID}/sandbox/files/{filename}
func (s *Server) writeFile(w http.ResponseWriter, r *http.Request) {
	sess := s.ownedSession(w, r)
	if sess == nil {
		return
	}
	filename := chi.URLParam(r, "filename")

	var req FileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	err := s.sandbox.Write(sess.UserID, sess.ID, filename, []byte(req.Content))
	switch {
	case errors.Is(err, sandbox.ErrInvalidName):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	case errors.Is(err, sandbox.ErrQuotaExceeded):
		writeErrorWithDetails(w, http.StatusBadRequest, ErrCodeQuotaExceeded, err.Error(),
			map[string]any{"filename": filename})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"filename": filename,
		"status":   "saved",
	})
}

// deleteFile handles DELETE /api/sessions/{sessionID}/sandbox/files/{filename}
func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	sess := s.ownedSession(w, r)
	if sess == nil {
		return
	}

	if err := s.sandbox.Delete(sess.UserID, sess.ID, chi.URLParam(r, "filename")); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// previewSandbox handles GET /api/sessions/{sessionID}/sandbox/preview
//
// Serves the sandbox index.html with an injected <base> tag so relative
// asset references resolve through the static endpoint. Readable by the
// owner or, for public sessions, by anyone.
func (s *Server) previewSandbox(w http.ResponseWriter, r *http.Request) {
	sess := s.readableSession(w, r)
	if sess == nil {
		return
	}

	content, err := s.sandbox.Read(sess.UserID, sess.ID, "index.html")
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "index.html not found in sandbox")
		return
	}

	html := string(content)
	baseTag := fmt.Sprintf(`<base href="/api/sessions/%s/sandbox/static/">`, sess.ID)
	if strings.Contains(html, "<head>") {
		html = strings.Replace(html, "<head>", "<head>\n    "+baseTag, 1)
	} else {
		html = baseTag + html
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, html)
}

// staticFile handles GET /api/sessions/{sessionID}/sandbox/static/{filename}
func (s *Server) staticFile(w http.ResponseWriter, r *http.Request) {
	sess := s.readableSession(w, r)
	if sess == nil {
		return
	}
	filename := chi.URLParam(r, "filename")

	content, err := s.sandbox.Read(sess.UserID, sess.ID, filename)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("File not found: %s", filename))
		return
	}

	w.Header().Set("Content-Type", mediaType(filename))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(content)
}

func mediaType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".css"):
		return "text/css"
	case strings.HasSuffix(filename, ".js"):
		return "application/javascript"
	case strings.HasSuffix(filename, ".html"):
		return "text/html; charset=utf-8"
	default:
		return "text/plain"
	}
}
