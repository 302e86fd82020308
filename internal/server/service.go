// Package server provides the HTTP API for the reclaim service.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hydroloop/reclaim/internal/config"
	"github.com/hydroloop/reclaim/internal/metrics"
	"github.com/hydroloop/reclaim/internal/server/sse"
	"github.com/hydroloop/reclaim/internal/session"
	"github.com/rs/zerolog/log"
)

// Service wires the session controller to the HTTP surface.
type Service struct {
	version    string
	config     *config.Config
	controller *session.Controller
	metrics    *metrics.Service
	broadcast  *sse.Broadcaster
	router     *chi.Mux
	httpServer *http.Server
	ready      atomic.Bool
	startTime  time.Time
}

// New creates a Service. The controller's observer should already be
// wired to broadcaster (see NewWithObserver for the common path).
func New(version string, cfg *config.Config, ctrl *session.Controller, m *metrics.Service, b *sse.Broadcaster) *Service {
	svc := &Service{
		version:    version,
		config:     cfg,
		controller: ctrl,
		metrics:    m,
		broadcast:  b,
		router:     chi.NewRouter(),
		startTime:  time.Now(),
	}
	svc.setupRoutes()
	svc.ready.Store(true)
	return svc
}

// NewWithObserver builds the broadcaster, metrics, and controller as a
// connected set and returns the assembled Service.
func NewWithObserver(version string, cfg *config.Config) *Service {
	b := sse.NewBroadcaster()
	m := metrics.New()
	ctrl := session.New(cfg.BatchSize, func(ev session.Event) {
		b.Publish(ev)
	})
	return New(version, cfg, ctrl, m, b)
}

// Controller exposes the session controller, used by the MQTT bridge.
func (s *Service) Controller() *session.Controller {
	return s.controller
}

// Router returns the configured router, used directly in tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled, then drains with
// a shutdown grace period.
func (s *Service) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.config.ListenAddr).Str("version", s.version).Msg("HTTP server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.ready.Store(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requireReady rejects requests while the service is starting up or
// draining.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "service is not ready", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// countRequests records every handled request.
func (s *Service) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RecordRequest(r.Context())
		next.ServeHTTP(w, r)
	})
}
