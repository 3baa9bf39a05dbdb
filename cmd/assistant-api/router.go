// Package main provides the API router setup.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/opsloom/assistant-engine/cmd/assistant-api/handlers"
	"github.com/opsloom/assistant-engine/cmd/assistant-api/middleware"
	"github.com/opsloom/assistant-engine/internal/observability"
)

// Pinger reports whether a backing store is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, handler *handlers.AssistantHandler, db Pinger, requestTimeout time.Duration, auth middleware.AuthConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger) // Use chi's built-in logger
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(middleware.RequestContext)
	r.Use(chimiddleware.Timeout(requestTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"assistant-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Error().Err(err).Msg("Readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}

		w.Write([]byte(`{"status":"ready"}`))
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(auth))

		r.Route("/assistant", func(r chi.Router) {
			r.Post("/query", handler.Query)
			r.Post("/feedback", handler.Feedback)
		})
	})

	return r
}
