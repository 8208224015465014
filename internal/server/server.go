// Package server provides the HTTP API: message creation, execution-step
// queries, the SSE stream, sandbox file access, and the thin session and
// auth surfaces around the agent core.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/websmith-ai/websmith/internal/agent"
	"github.com/websmith-ai/websmith/internal/auth"
	"github.com/websmith-ai/websmith/internal/config"
	"github.com/websmith-ai/websmith/internal/event"
	"github.com/websmith-ai/websmith/internal/prompt"
	"github.com/websmith-ai/websmith/internal/sandbox"
	"github.com/websmith-ai/websmith/internal/store"
	"github.com/websmith-ai/websmith/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE
	}
}

// Server is the HTTP server.
type Server struct {
	config    *Config
	settings  *config.Config
	router    *chi.Mux
	httpSrv   *http.Server
	store     *store.Store
	sandbox   *sandbox.Service
	hub       *event.Hub
	loop      *agent.Loop
	tokens    *auth.Manager
	promptCfg prompt.Config
}

// New creates a new Server instance.
func New(cfg *Config, settings *config.Config, st *store.Store, sb *sandbox.Service, hub *event.Hub, loop *agent.Loop, tokens *auth.Manager) *Server {
	s := &Server{
		config:   cfg,
		settings: settings,
		router:   chi.NewRouter(),
		store:    st,
		sandbox:  sb,
		hub:      hub,
		loop:     loop,
		tokens:   tokens,
		promptCfg: prompt.Config{
			MaxHistory:        settings.MaxHistoryMessages,
			EnableTruncation:  settings.EnableMessageTruncation,
			MaxUserInput:      settings.MaxUserInputLength,
			TruncationWarning: settings.TruncationWarningMessage,
		},
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Context keys
type contextKey string

const contextKeyClaims contextKey = "claims"

// authenticate extracts and verifies the bearer token from the
// Authorization header or the access_token cookie.
func (s *Server) authenticate(r *http.Request) *auth.Claims {
	token := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	if token == "" {
		if c, err := r.Cookie("access_token"); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return nil
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}
	return claims
}

// requireAuth rejects unauthenticated requests.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := s.authenticate(r)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Not authenticated")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth injects claims when a valid token is present but lets
// anonymous requests through. Used by the public-readable endpoints.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := s.authenticate(r); claims != nil {
			ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// currentUser returns the authenticated claims from context, or nil.
func currentUser(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(contextKeyClaims).(*auth.Claims)
	return claims
}

// ownedSession loads a session and verifies the caller owns it. Writes
// the error response and returns nil on failure.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request) *types.Session {
	claims := currentUser(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Not authenticated")
		return nil
	}

	sess, err := s.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil || sess.UserID != claims.UserID {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Session not found")
		return nil
	}
	return sess
}

// readableSession loads a session readable by the caller: the owner, or
// anyone if the session is public.
func (s *Server) readableSession(w http.ResponseWriter, r *http.Request) *types.Session {
	sess, err := s.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Session not found")
		return nil
	}

	if !sess.Public {
		claims := currentUser(r.Context())
		if claims == nil || claims.UserID != sess.UserID {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "This session is private")
			return nil
		}
	}
	return sess
}
