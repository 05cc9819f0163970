// Package api serves the read-only status surface: bound hooks, recent
// invocations, and a live event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxinfinitus/kaa/internal/events"
	"github.com/voxinfinitus/kaa/internal/log"
	"github.com/voxinfinitus/kaa/internal/registry"
	"github.com/voxinfinitus/kaa/internal/store"
)

// HookSource lists the currently bound hooks.
type HookSource interface {
	Commands() []registry.Descriptor
	Events() []registry.Descriptor
}

// InvocationSource reads back persisted invocations.
type InvocationSource interface {
	Recent(ctx context.Context, limit int) ([]store.Invocation, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	APIKey string
}

// Server is the HTTP status server.
type Server struct {
	config      Config
	hooks       HookSource
	invocations InvocationSource
	hub         *events.Hub
	logger      *slog.Logger
	server      *http.Server
	startedAt   time.Time
}

// New creates an API server. invocations may be nil when persistence is
// disabled.
func New(config Config, hooks HookSource, invocations InvocationSource, hub *events.Hub) *Server {
	return &Server{
		config:      config,
		hooks:       hooks,
		invocations: invocations,
		hub:         hub,
		logger:      log.WithComponent("api"),
		startedAt:   time.Now(),
	}
}

// Start runs the HTTP server until ctx is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // Long-lived SSE connections
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/v1/hooks", s.handleHooks)
		r.Get("/v1/invocations", s.handleInvocations)
		r.Get("/v1/events", s.handleEvents)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// HookInfo is the wire shape of one bound hook.
type HookInfo struct {
	Kind    string           `json:"kind"`
	Hook    string           `json:"hook"`
	Funcs   int              `json:"funcs"`
	Options registry.Options `json:"options,omitempty"`
}

func (s *Server) handleHooks(w http.ResponseWriter, r *http.Request) {
	var out []HookInfo
	for _, d := range s.hooks.Commands() {
		out = append(out, hookInfo(d))
	}
	for _, d := range s.hooks.Events() {
		out = append(out, hookInfo(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Hook < out[j].Hook
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"hooks": out})
}

func hookInfo(d registry.Descriptor) HookInfo {
	return HookInfo{
		Kind:    string(d.Kind),
		Hook:    d.Hook,
		Funcs:   len(d.Funcs),
		Options: d.Options,
	}
}

func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	if s.invocations == nil {
		s.writeError(w, http.StatusNotFound, "invocation persistence is disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit < 1 || limit > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be in 1..500")
			return
		}
	}

	invs, err := s.invocations.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read invocations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read invocations")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"invocations": invs})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
