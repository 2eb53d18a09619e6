// Package server serves the crash watcher's HTTP endpoints: Prometheus
// metrics, a health check and a small read and delete API over the stored
// crash reports.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dagucloud/crashguard/internal/cmn/logger"
	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/persis/filereport"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 120 * time.Second
	writeTimeout      = 30 * time.Second
)

type Server struct {
	store      *filereport.Store
	gatherer   prometheus.Gatherer
	logger     logger.Logger
	jsonLogs   bool
	logLevel   slog.Level
	httpServer *http.Server
}

type Option func(*Server)

// WithLogger sets the logger for server lifecycle messages.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRequestLog configures the per-request log written by httplog.
func WithRequestLog(json bool, level slog.Level) Option {
	return func(s *Server) {
		s.jsonLogs = json
		s.logLevel = level
	}
}

func New(store *filereport.Store, gatherer prometheus.Gatherer, opts ...Option) *Server {
	s := &Server{
		store:    store,
		gatherer: gatherer,
		logger:   logger.Discard(),
		logLevel: slog.LevelWarn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with every endpoint mounted.
func (s *Server) Handler() http.Handler {
	requestLogger := httplog.NewLogger("http", httplog.Options{
		LogLevel:         s.logLevel,
		JSON:             s.jsonLogs,
		Concise:          true,
		MessageFieldName: "msg",
	})

	r := chi.NewMux()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Accept"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", s.handleHealth)
	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Get("/", s.handleListReports)
		r.Get("/{id}", s.handleGetReport)
		r.Get("/{id}/recrash", s.handleGetRecrash)
		r.Delete("/{id}", s.handleDeleteReport)
	})
	return r
}

// Start listens on addr and serves in the background. It returns the
// address actually bound, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		WriteTimeout:      writeTimeout,
	}

	s.logger.Info("Server is starting", tag.Addr(ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed", tag.Error(err))
		}
	}()
	return ln.Addr(), nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Server is shutting down")
	s.httpServer.SetKeepAlivesEnabled(false)
	return s.httpServer.Shutdown(ctx)
}
