package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/vecsync/internal/config"
	"github.com/hyperjump/vecsync/internal/embedding"
	"github.com/hyperjump/vecsync/internal/identity"
	"github.com/hyperjump/vecsync/internal/ingest"
	"github.com/hyperjump/vecsync/internal/metrics"
	"github.com/hyperjump/vecsync/internal/trainer"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

// Components holds initialized services.
type Components struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *metrics.Recorder
	Store        vectorstore.Store
	Embedder     embedding.Embedder
	Orchestrator *ingest.Orchestrator
}

// Close releases the store and the embedder. Memory stores persist their file here.
func (c *Components) Close() {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Warn("close store", zap.Error(err))
		}
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// Trainer builds a trainer for strategy over the shared store.
func (c *Components) Trainer(strategy trainer.Strategy) (*trainer.Trainer, error) {
	return trainer.New(c.Orchestrator, c.Store, c.Embedder, strategy,
		trainer.WithLogger(c.Logger),
		trainer.WithMetrics(c.Metrics),
		trainer.WithOptionsResolver(c.Config),
		trainer.WithConcurrency(c.Config.Training.Concurrency),
		trainer.WithContinueOnError(c.Config.Training.ContinueOnError),
	)
}

// initializeComponents validates cfg and opens the store and embedder it describes.
// rec may be nil when metrics are not served.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, rec *metrics.Recorder) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	assigner, err := identity.NewAssigner(identity.Scheme(cfg.Identity.Scheme), identity.Hash(cfg.Identity.Hash))
	if err != nil {
		return nil, err
	}
	orch, err := ingest.NewOrchestrator(
		ingest.NewDefaultDispatcher(assigner, cfg.Records.TextField),
		ingest.WithLogger(logger),
		ingest.WithOptionsResolver(cfg),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.New(cfg.EmbeddingSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	store, err := vectorstore.Open(ctx, cfg.StoreConfig(logger))
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}
	logger.Debug("components initialized",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("collection", cfg.Storage.Collection),
		zap.String("path", cfg.Storage.Path),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", embedder.Dimensions()))

	return &Components{
		Config:       cfg,
		Logger:       logger,
		Metrics:      rec,
		Store:        store,
		Embedder:     embedder,
		Orchestrator: orch,
	}, nil
}
