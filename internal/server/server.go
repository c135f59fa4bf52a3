// File: internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/internal/config"
	"github.com/xkilldash9x/agentforge/internal/observability"
	"github.com/xkilldash9x/agentforge/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server exposes the pipeline over HTTP and streams run progress over WebSockets.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	components *service.Components
	runs       *lru.Cache[string, *runState]
	httpServer *http.Server

	// baseCtx outlives individual requests; runs are bound to it.
	baseCtx    context.Context
	cancelRuns context.CancelFunc
}

// New creates a server over already initialized components.
func New(cfg config.ServerConfig, components *service.Components, logger *zap.Logger) (*Server, error) {
	if components == nil || components.Controller == nil {
		return nil, fmt.Errorf("server requires initialized pipeline components")
	}
	size := cfg.RecentRuns
	if size <= 0 {
		size = 32
	}
	runs, err := lru.New[string, *runState](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create run cache: %w", err)
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		logger:     logger.Named("server"),
		components: components,
		runs:       runs,
		baseCtx:    baseCtx,
		cancelRuns: cancel,
	}, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// WebSocket routes stay outside the timeout and logging middleware.
	r.Get("/ws/runs/{runID}", s.handleRunStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(requestLogger(s.logger))

		r.Get("/healthz", s.handleHealthCheck)
		r.Route("/api", func(r chi.Router) {
			r.Post("/runs", s.handleStartRun)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{runID}", s.handleGetRun)
			r.Get("/runs/{runID}/bundle", s.handleBundle)
			r.Get("/usage", s.handleUsage)
		})
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	defer observability.Sync()

	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		s.cancelRuns()
		close(idleConnsClosed)
	}()

	s.logger.Info("Server starting", zap.String("address", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server ListenAndServe error", zap.Error(err))
		s.cancelRuns()
		return err
	}

	<-idleConnsClosed
	s.logger.Info("Server stopped.")
	return nil
}

// startRun launches a pipeline run and records its progress in the cache.
// It returns false without starting anything while another run is active.
func (s *Server) startRun(requirements string) (*runState, bool) {
	id := uuid.NewString()
	updates, ok := s.components.Controller.TryStart(s.baseCtx, id, requirements)
	if !ok {
		return nil, false
	}
	state := newRunState(id)
	s.runs.Add(state.id, state)

	go func() {
		defer state.finish()
		for u := range updates {
			state.append(u)
		}
	}()
	return state, true
}

// corsMiddleware provides basic CORS support for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each HTTP request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
