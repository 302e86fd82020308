package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// setupRoutes configures all HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(s.countRequests)

	s.router.Route("/api", func(r chi.Router) {
		// Liveness surface stays reachable while not ready.
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/version", s.handleVersion)

		r.Group(func(r chi.Router) {
			r.Use(s.requireReady)

			r.Post("/ingest", s.handleIngest)
			r.Post("/session/start", s.handleSessionStart)
			r.Post("/session/reset", s.handleSessionReset)
			r.Get("/session/status", s.handleSessionStatus)
			r.Get("/session/readings", s.handleSessionReadings)
			r.Post("/analyze-water", s.handleAnalyze)
			r.Get("/prediction/latest", s.handleLatestPrediction)
			r.Post("/pump/command", s.handleQueueCommand)
			r.Get("/pump/command", s.handleFetchCommand)
			r.Post("/pump/ack", s.handleAcknowledge)
			r.Get("/stats", s.handleStats)
			r.Get("/events", s.broadcast.HandleSSE)
		})
	})
}

// requestLogger logs each request with zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
