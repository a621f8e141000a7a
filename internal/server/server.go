// Package server provides the HTTP API for vecsync.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/vecsync/internal/config"
	"github.com/hyperjump/vecsync/internal/embedding"
	"github.com/hyperjump/vecsync/internal/metrics"
	"github.com/hyperjump/vecsync/internal/query"
	"github.com/hyperjump/vecsync/internal/trainer"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

// TrainerFactory builds a trainer bound to the shared store for one strategy.
type TrainerFactory func(strategy trainer.Strategy) (*trainer.Trainer, error)

// WatchService manages the watched directory set.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the vecsync API.
type Server struct {
	config     *config.Config
	configPath string
	trainers   TrainerFactory
	store      vectorstore.Store
	embedder   embedding.Embedder
	scanner    *query.Scanner
	watch      WatchService
	metrics    *metrics.Recorder
	logger     *zap.Logger
	server     *http.Server

	// writeMu serializes writers of the shared collection.
	writeMu  sync.Locker
	configMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics enables the /metrics endpoint and request instrumentation.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCollectionLock sets the lock held by training runs and deletes. Share it with every other
// writer of the collection, such as the directory watcher.
func WithCollectionLock(l sync.Locker) Option {
	return func(s *Server) { s.writeMu = l }
}

// WithWatch enables the watch directory endpoints. Changes are persisted to configPath when it is set.
func WithWatch(w WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(
	cfg *config.Config,
	trainers TrainerFactory,
	store vectorstore.Store,
	embedder embedding.Embedder,
	opts ...Option,
) *Server {
	s := &Server{
		config:   cfg,
		trainers: trainers,
		store:    store,
		embedder: embedder,
		scanner:  query.NewScanner(store),
		logger:   zap.NewNop(),
		writeMu:  &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Post("/api/v1/train", s.handleTrain)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/items", s.handleListItems)
	r.Get("/api/v1/items/range", s.handleRangeItems)
	r.Get("/api/v1/items/{id}", s.handleGetItem)
	r.Delete("/api/v1/items/{id}", s.handleDeleteItem)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
