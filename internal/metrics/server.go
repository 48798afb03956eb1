package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tickd/internal/logging"
)

// Health is the /healthz payload.
type Health struct {
	Identity string `json:"identity"`
	State    string `json:"state"`
	Elapsed  string `json:"elapsed"`
	Ticks    int64  `json:"ticks"`
}

// HealthFunc reports the current run loop status.
type HealthFunc func() Health

// Server serves /metrics and /healthz.
type Server struct {
	bind   string
	logger *slog.Logger
	health HealthFunc

	listener net.Listener
	server   *http.Server
}

// NewServer builds a server for bind. An empty bind returns nil; every
// method on a nil *Server is a no-op.
func NewServer(bind string, c *Collectors, health HealthFunc, logger *slog.Logger) *Server {
	bind = strings.TrimSpace(bind)
	if bind == "" || c == nil {
		return nil
	}
	s := &Server{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "metrics"),
		health: health,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
	router.Get("/healthz", s.handleHealth)

	s.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.server.Handler
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on the bind address and serves until ctx ends or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("metrics server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var payload Health
	if s.health != nil {
		payload = s.health()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("encode health response", logging.Error(err))
	}
}
