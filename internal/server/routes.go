package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(api chi.Router) {
		// Authentication (thin collaborator surface)
		api.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/logout", s.logout)
			r.With(s.requireAuth).Get("/me", s.me)
		})

		// Sessions
		api.Route("/sessions", func(r chi.Router) {
			r.With(s.requireAuth).Get("/", s.listSessions)
			r.With(s.requireAuth).Post("/", s.createSession)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.With(s.requireAuth).Get("/", s.getSession)
				r.With(s.requireAuth).Put("/", s.updateSession)
				r.With(s.requireAuth).Delete("/", s.deleteSession)

				// Messages and execution steps
				r.Route("/messages", func(r chi.Router) {
					r.With(s.requireAuth).Post("/", s.createMessage)
					r.With(s.optionalAuth).Get("/", s.listMessages)
					r.With(s.optionalAuth).Get("/stream", s.streamEvents)
					r.With(s.optionalAuth).Get("/_internal/latest/execution-steps", s.latestExecutionSteps)
					r.With(s.optionalAuth).Get("/{messageID}/execution-steps", s.listExecutionSteps)
				})

				// Sandbox files
				r.Route("/sandbox", func(r chi.Router) {
					r.With(s.requireAuth).Get("/files", s.listFiles)
					r.With(s.requireAuth).Get("/files/{filename}", s.readFile)
					r.With(s.requireAuth).Post("/files/{filename}", s.writeFile)
					r.With(s.requireAuth).Delete("/files/{filename}", s.deleteFile)
					r.With(s.optionalAuth).Get("/preview", s.previewSandbox)
					r.With(s.optionalAuth).Get("/static/{filename}", s.staticFile)
				})
			})
		})
	})
}
