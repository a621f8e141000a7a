package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/query"
	"github.com/hyperjump/vecsync/internal/trainer"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

// TrainerSyncer trains changed files into the store and prunes items that no longer
// belong to any file: chunks that disappeared from an edited file and every chunk of a
// deleted one.
type TrainerSyncer struct {
	trainer  *trainer.Trainer
	store    vectorstore.Store
	scanner  *query.Scanner
	logger   *zap.Logger
	lock     sync.Locker
	restores func() []string
}

// SyncerOption configures a TrainerSyncer.
type SyncerOption func(*TrainerSyncer)

// WithLock makes the syncer hold l for the whole of each batch. Every other writer of the
// collection must take the same lock.
func WithLock(l sync.Locker) SyncerOption {
	return func(s *TrainerSyncer) { s.lock = l }
}

// WithRestore sets the files re-trained after a batch deleted items. With unsalted content ids a
// deleted id can still be produced by another file, and re-training puts it back under that file.
func WithRestore(files func() []string) SyncerOption {
	return func(s *TrainerSyncer) { s.restores = files }
}

// NewTrainerSyncer returns a syncer that runs t against store.
func NewTrainerSyncer(t *trainer.Trainer, store vectorstore.Store, logger *zap.Logger, opts ...SyncerOption) *TrainerSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TrainerSyncer{
		trainer: t,
		store:   store,
		scanner: query.NewScanner(store),
		logger:  logger,
		lock:    &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncFiles trains paths, then deletes items of those sources that the new run did not produce.
// Sources that failed to read keep their items.
func (s *TrainerSyncer) SyncFiles(ctx context.Context, paths []string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.trainer.Train(ctx, paths)
	if res == nil {
		return err
	}
	if err != nil {
		// The run stopped part way; the produced set is incomplete so nothing is pruned.
		return err
	}
	failed := make(map[string]bool, len(res.SourceFailures))
	for _, f := range res.SourceFailures {
		failed[f.Source] = true
	}
	keep := make(map[string]map[string]bool)
	for _, it := range res.Items {
		if keep[it.Source] == nil {
			keep[it.Source] = make(map[string]bool)
		}
		keep[it.Source][it.ID] = true
	}

	var pruned int
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || failed[p] || failed[abs] {
			continue
		}
		ids, err := s.scanner.ScanIDs(ctx, models.MetaSource, abs)
		if err != nil {
			return err
		}
		var stale []string
		for _, id := range ids {
			if !keep[abs][id] {
				stale = append(stale, id)
			}
		}
		if len(stale) == 0 {
			continue
		}
		if err := s.store.Delete(ctx, stale...); err != nil {
			return &models.StoreError{Op: "delete", Err: err}
		}
		pruned += len(stale)
	}
	s.logger.Info("watch sync",
		zap.Int("files", len(paths)),
		zap.Int64("processed", res.Counts.Processed),
		zap.Int64("updated", res.Counts.Updated),
		zap.Int64("skipped", res.Counts.Skipped),
		zap.Int("pruned", pruned),
		zap.Int("source_failures", len(res.SourceFailures)))
	if pruned > 0 {
		s.restore(ctx, paths)
	}
	return nil
}

// RemoveFiles deletes every item whose source is one of paths.
func (s *TrainerSyncer) RemoveFiles(ctx context.Context, paths []string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	var removed int
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		ids, err := s.scanner.ScanIDs(ctx, models.MetaSource, abs)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		if err := s.store.Delete(ctx, ids...); err != nil {
			return &models.StoreError{Op: "delete", Err: err}
		}
		removed += len(ids)
	}
	s.logger.Info("watch remove", zap.Int("files", len(paths)), zap.Int("items", removed))
	if removed > 0 {
		s.restore(ctx, paths)
	}
	return nil
}

// restore re-trains the restore set minus handled. Failures are logged; the batch itself succeeded.
func (s *TrainerSyncer) restore(ctx context.Context, handled []string) {
	if s.restores == nil {
		return
	}
	skip := make(map[string]bool, len(handled))
	for _, p := range handled {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = true
		}
	}
	var others []string
	for _, p := range s.restores() {
		abs, err := filepath.Abs(p)
		if err == nil && !skip[abs] {
			others = append(others, abs)
		}
	}
	if len(others) == 0 {
		return
	}
	res, err := s.trainer.Train(ctx, others)
	if err != nil {
		s.logger.Warn("restore shared chunks failed", zap.Error(err))
		return
	}
	if res.Counts.Processed > 0 {
		s.logger.Info("restored shared chunks", zap.Int64("items", res.Counts.Processed))
	}
}
