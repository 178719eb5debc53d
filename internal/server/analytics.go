// Package server provides a small read-only HTTP server that exposes the
// trackers' streamer state, PubSub pool state and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/constants"
	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
	"github.com/Guliveer/twitch-points-tracker/internal/pubsub"
)

// Account is the read side of one running tracker. *miner.Miner
// satisfies it.
type Account interface {
	Username() string
	IsRunning() bool
	Snapshot() []model.StreamerSnapshot
	PubSubStats() pubsub.Stats
}

// AnalyticsServer serves the JSON status API and /metrics.
type AnalyticsServer struct {
	addr string
	log  *logger.Logger
	srv  *http.Server

	mu       sync.RWMutex
	accounts []Account
}

// NewAnalyticsServer creates a server bound to addr. metrics may be nil,
// in which case /metrics is not served.
func NewAnalyticsServer(addr string, metrics http.Handler, log *logger.Logger) *AnalyticsServer {
	s := &AnalyticsServer{
		addr: addr,
		log:  log,
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           withLogging(log, s.routes(metrics)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}
	return s
}

func (s *AnalyticsServer) routes(metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/streamers", s.handleStreamers)
	mux.HandleFunc("GET /api/streamer/{name}", s.handleStreamer)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/pubsub", s.handlePubSub)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}

// AddAccount registers a tracker. Thread-safe.
func (s *AnalyticsServer) AddAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append(s.accounts, a)
}

func (s *AnalyticsServer) getAccounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Account(nil), s.accounts...)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *AnalyticsServer) Run(ctx context.Context) error {
	s.log.Info("Analytics server starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("analytics server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Analytics server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("analytics server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func withLogging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start).String(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
