package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Fused time
		r.Route("/time", func(r chi.Router) {
			r.Get("/", s.handleGetTime)
			r.Get("/status", s.handleTimeStatus)
		})

		// Stream registry and queries
		r.Route("/streams", func(r chi.Router) {
			r.Get("/", s.handleListStreams)
			r.Post("/", s.handleCreateStream)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetStream)
				r.Delete("/", s.handleDeleteStream)
				r.Post("/points", s.handleAddPoints)
				r.Get("/at", s.handlePointAt)
				r.Get("/range", s.handleRange)
				r.Get("/gaps", s.handleGaps)
				r.Post("/reconstruct", s.handleReconstruct)
			})
		})

		// WebSocket event feed
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status, including the optional
// transports.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"engine": "ok",
	}
	status := http.StatusOK

	if err := s.engine.HealthCheck(r.Context()); err != nil {
		components["engine"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.mqtt != nil {
		components["mqtt"] = "ok"
		if err := s.mqtt.HealthCheck(r.Context()); err != nil {
			components["mqtt"] = err.Error()
		}
	}
	if s.archive != nil {
		components["archive"] = "ok"
		if err := s.archive.HealthCheck(r.Context()); err != nil {
			components["archive"] = err.Error()
		}
	}

	body := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"components": components,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
