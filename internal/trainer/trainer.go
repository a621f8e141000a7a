// Package trainer synchronizes ingested items into a vector store according to a training strategy.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/vecsync/internal/embedding"
	"github.com/hyperjump/vecsync/internal/ingest"
	"github.com/hyperjump/vecsync/internal/metrics"
	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

// Trainer runs ingestion and synchronization against one store.
type Trainer struct {
	orchestrator    *ingest.Orchestrator
	store           vectorstore.Store
	embedder        embedding.Embedder
	strategy        Strategy
	resolver        ingest.OptionsResolver
	concurrency     int
	continueOnError bool
	metrics         *metrics.Recorder
	logger          *zap.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(t *Trainer) { t.metrics = m }
}

// WithOptionsResolver sets per-extension chunking options passed to the orchestrator.
func WithOptionsResolver(r ingest.OptionsResolver) Option {
	return func(t *Trainer) { t.resolver = r }
}

// WithConcurrency synchronizes up to n items of the same extension group at once. n <= 1 is sequential.
func WithConcurrency(n int) Option {
	return func(t *Trainer) { t.concurrency = n }
}

// WithContinueOnError records failed items and keeps going instead of aborting the run on the first failure.
func WithContinueOnError(v bool) Option {
	return func(t *Trainer) { t.continueOnError = v }
}

// New validates the collaborators for strategy. embedder may be nil only for ProcessOnly.
func New(orchestrator *ingest.Orchestrator, store vectorstore.Store, embedder embedding.Embedder, strategy Strategy, opts ...Option) (*Trainer, error) {
	if _, ok := transitions[strategy]; !ok {
		return nil, models.NewConfigurationError("training.strategy", "unknown strategy %q", strategy)
	}
	if orchestrator == nil {
		return nil, models.NewConfigurationError("orchestrator", "required")
	}
	if store == nil {
		return nil, models.NewConfigurationError("store", "required")
	}
	if embedder == nil && strategy.NeedsEmbedder() {
		return nil, models.NewConfigurationError("embedder", "required for strategy %s", strategy)
	}
	t := &Trainer{
		orchestrator: orchestrator,
		store:        store,
		embedder:     embedder,
		strategy:     strategy,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.concurrency < 0 {
		return nil, models.NewConfigurationError("training.concurrency", "must be >= 0, got %d", t.concurrency)
	}
	return t, nil
}

// Strategy returns the configured strategy.
func (t *Trainer) Strategy() Strategy { return t.strategy }

// Train ingests sources and synchronizes the resulting items. Unreadable sources are reported in
// SourceFailures and do not stop the run. Configuration and cancellation errors during ingestion
// return a nil result; synchronization errors return the partial result along with the error.
func (t *Trainer) Train(ctx context.Context, sources []string) (*models.TrainResult, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := t.logger.With(zap.String("run_id", runID), zap.String("strategy", string(t.strategy)))
	log.Info("training started", zap.Int("sources", len(sources)))

	ing, err := t.orchestrator.Ingest(ctx, sources, t.resolver)
	if err != nil {
		t.metrics.ObserveRun(string(t.strategy), time.Since(start), err)
		return nil, fmt.Errorf("ingest: %w", err)
	}
	sourceFailures := make([]models.SourceFailure, len(ing.Failures))
	for i, f := range ing.Failures {
		sourceFailures[i] = models.SourceFailure{Source: f.Source, Error: f.Err.Error()}
	}
	t.metrics.ObserveSourceFailures(len(ing.Failures))

	res, err := t.sync(ctx, runID, ing.Items, log)
	res.SourceFailures = sourceFailures
	res.Duration = time.Since(start)
	t.metrics.ObserveRun(string(t.strategy), res.Duration, err)
	log.Info("training finished",
		zap.Int("items", len(res.Items)),
		zap.Int64("processed", res.Counts.Processed),
		zap.Int64("updated", res.Counts.Updated),
		zap.Int64("skipped", res.Counts.Skipped),
		zap.Int64("failed", res.Counts.Failed),
		zap.Int("source_failures", len(sourceFailures)),
		zap.Duration("duration", res.Duration),
		zap.Error(err))
	return res, err
}

// Sync synchronizes already-ingested items. Items repeating an earlier id are ignored.
func (t *Trainer) Sync(ctx context.Context, items []*models.Item) (*models.TrainResult, error) {
	start := time.Now()
	runID := uuid.New().String()
	res, err := t.sync(ctx, runID, items, t.logger.With(zap.String("run_id", runID)))
	res.Duration = time.Since(start)
	t.metrics.ObserveRun(string(t.strategy), res.Duration, err)
	return res, err
}

// run holds the state shared by the workers of one synchronization.
type run struct {
	tr  transition
	log *zap.Logger

	processed, skipped, updated, failed atomic.Int64

	mu       sync.Mutex
	failures []models.ItemFailure
}

func (r *run) counts() models.Counts {
	return models.Counts{
		Processed: r.processed.Load(),
		Skipped:   r.skipped.Load(),
		Updated:   r.updated.Load(),
		Failed:    r.failed.Load(),
	}
}

func (t *Trainer) sync(ctx context.Context, runID string, items []*models.Item, log *zap.Logger) (*models.TrainResult, error) {
	items = uniqueItems(items)
	res := &models.TrainResult{RunID: runID, Strategy: string(t.strategy), Items: items}
	r := &run{tr: transitions[t.strategy], log: log}

	if !r.tr.embed {
		return res, nil
	}
	if r.tr.drop {
		if err := t.store.DropCollection(ctx); err != nil {
			return res, &models.StoreError{Op: "drop", Uncertain: true, Err: err}
		}
		log.Info("collection dropped")
	}

	var err error
	for _, group := range groupByExtension(items) {
		if t.concurrency > 1 {
			err = t.syncParallel(ctx, r, group)
		} else {
			err = t.syncSequential(ctx, r, group)
		}
		if err != nil {
			break
		}
	}

	res.Counts = r.counts()
	res.ItemFailures = r.failures
	t.observe(ctx, res.Counts)
	return res, err
}

func (t *Trainer) observe(ctx context.Context, c models.Counts) {
	s := string(t.strategy)
	t.metrics.ObserveItems(s, metrics.OutcomeProcessed, c.Processed)
	t.metrics.ObserveItems(s, metrics.OutcomeSkipped, c.Skipped)
	t.metrics.ObserveItems(s, metrics.OutcomeUpdated, c.Updated)
	t.metrics.ObserveItems(s, metrics.OutcomeFailed, c.Failed)
	if t.metrics == nil {
		return
	}
	if n, err := t.store.Count(context.WithoutCancel(ctx)); err == nil {
		t.metrics.SetCollectionItems(n)
	}
}

func (t *Trainer) syncSequential(ctx context.Context, r *run, items []*models.Item) error {
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.syncItem(ctx, r, it); err != nil {
			return err
		}
	}
	return nil
}

// syncParallel fans the group out over an ants pool. The first fatal error cancels the remaining items.
func (t *Trainer) syncParallel(ctx context.Context, r *run, items []*models.Item) error {
	pool, err := ants.NewPool(t.concurrency)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, it := range items {
		it := it // per-iteration copy (go directive predates Go 1.22 loop semantics)
		if runCtx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if runCtx.Err() != nil {
				return
			}
			if err := t.syncItem(runCtx, r, it); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		})
		if submitErr != nil {
			wg.Done()
			once.Do(func() {
				firstErr = fmt.Errorf("submit item %s: %w", it.ID, submitErr)
				cancel()
			})
			break
		}
	}
	wg.Wait()

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return firstErr
}

// syncItem applies the strategy's transition to one item. It returns an error only when the run must stop.
func (t *Trainer) syncItem(ctx context.Context, r *run, it *models.Item) error {
	existed := false
	if r.tr.existing != existingNotChecked {
		ok, err := t.store.Exists(ctx, it.ID)
		if err != nil {
			return t.itemFailed(ctx, r, it, &models.StoreError{Op: "exists", ItemID: it.ID, Err: err})
		}
		if ok && r.tr.existing == existingSkip {
			r.skipped.Add(1)
			r.log.Debug("item skipped", zap.String("id", it.ID))
			return nil
		}
		existed = ok
	}

	start := time.Now()
	vec, err := t.embedder.Embed(ctx, it.Text)
	t.metrics.ObserveEmbed(time.Since(start))
	if err != nil {
		return t.itemFailed(ctx, r, it, &models.EmbeddingError{ItemID: it.ID, Source: it.Source, Err: err})
	}
	it.Vector = vec

	// Once the vector exists the write is not abandoned, so vector and metadata land together.
	if err := t.store.Upsert(context.WithoutCancel(ctx), it.ID, vec, it.Metadata); err != nil {
		return t.itemFailed(ctx, r, it, &models.StoreError{Op: "upsert", ItemID: it.ID, Err: err})
	}
	if existed {
		r.updated.Add(1)
	} else {
		r.processed.Add(1)
	}
	r.log.Debug("item synced", zap.String("id", it.ID), zap.Bool("existed", existed))
	return nil
}

// itemFailed records err for the item when the run continues on error, and returns it otherwise.
// Cancellation always stops the run.
func (t *Trainer) itemFailed(ctx context.Context, r *run, it *models.Item, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.failed.Add(1)
	r.log.Warn("item failed", zap.String("id", it.ID), zap.String("source", it.Source), zap.Error(err))
	if !t.continueOnError {
		return err
	}
	r.mu.Lock()
	r.failures = append(r.failures, models.ItemFailure{ID: it.ID, Source: it.Source, Error: err.Error()})
	r.mu.Unlock()
	return nil
}

func uniqueItems(items []*models.Item) []*models.Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]*models.Item, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// groupByExtension splits items into runs of equal extension, preserving order.
func groupByExtension(items []*models.Item) [][]*models.Item {
	var groups [][]*models.Item
	index := make(map[string]int)
	for _, it := range items {
		i, ok := index[it.Extension]
		if !ok {
			i = len(groups)
			index[it.Extension] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], it)
	}
	return groups
}
