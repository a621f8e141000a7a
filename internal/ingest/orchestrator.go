package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/vecsync/internal/chunker"
	"github.com/hyperjump/vecsync/internal/models"
)

// Group is the result of one extension partition.
type Group struct {
	Extension string
	Options   chunker.Options
	Items     []*models.Item
}

// Result is the outcome of one ingestion call.
type Result struct {
	Groups []Group
	// Items is every group's items concatenated in group order.
	Items    []*models.Item
	Failures []*models.SourceReadError
	// Duplicates counts items dropped because an earlier item in the call had the same id.
	Duplicates int
}

// Orchestrator runs the dispatcher's engines over a batch of sources.
type Orchestrator struct {
	dispatcher *Dispatcher
	resolver   OptionsResolver
	logger     *zap.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithOptionsResolver sets the options used when Ingest is called without overrides.
func WithOptionsResolver(r OptionsResolver) OrchestratorOption {
	return func(o *Orchestrator) { o.resolver = r }
}

// NewOrchestrator validates the default options and returns an orchestrator.
func NewOrchestrator(d *Dispatcher, opts ...OrchestratorOption) (*Orchestrator, error) {
	if d == nil {
		return nil, models.NewConfigurationError("dispatcher", "required")
	}
	o := &Orchestrator{dispatcher: d, resolver: Overrides(nil), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.resolver.ResolveOptions("*").Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

type plannedGroup struct {
	part   Partition
	engine Engine
	opts   chunker.Options
}

// Ingest partitions sources by extension, resolves engine and options per partition, and runs each
// engine in source order. overrides nil uses the orchestrator's resolver. Engine and option problems
// are returned before any source is read. A source that fails to read is recorded in Failures and
// the batch continues. Items with an id already produced earlier in the call are dropped.
func (o *Orchestrator) Ingest(ctx context.Context, sources []string, overrides OptionsResolver) (*Result, error) {
	resolver := overrides
	if resolver == nil {
		resolver = o.resolver
	}

	parts := PartitionByExtension(sources)
	plan := make([]plannedGroup, 0, len(parts))
	for _, p := range parts {
		engine, err := o.dispatcher.ResolveExtension(p.Extension)
		if err != nil {
			return nil, err
		}
		opts := resolver.ResolveOptions(p.Extension)
		if err := opts.Validate(); err != nil {
			return nil, fmt.Errorf("options for %q: %w", p.Extension, err)
		}
		plan = append(plan, plannedGroup{part: p, engine: engine, opts: opts})
	}

	res := &Result{}
	seen := make(map[string]struct{})
	for _, g := range plan {
		group := Group{Extension: g.part.Extension, Options: g.opts}
		for _, path := range g.part.Paths {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			items, err := g.engine.Ingest(ctx, path, g.opts)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return res, err
				}
				o.logger.Warn("source read failed", zap.String("source", path), zap.Error(err))
				res.Failures = append(res.Failures, &models.SourceReadError{Source: path, Err: err})
				continue
			}
			for _, it := range items {
				if _, dup := seen[it.ID]; dup {
					res.Duplicates++
					continue
				}
				seen[it.ID] = struct{}{}
				group.Items = append(group.Items, it)
			}
			o.logger.Debug("source ingested", zap.String("source", path), zap.Int("items", len(items)))
		}
		res.Groups = append(res.Groups, group)
		res.Items = append(res.Items, group.Items...)
	}
	return res, nil
}

// IngestSingleType ingests sources that must all share one extension, using opts for every source.
// A batch spanning several extensions returns ErrMixedSourceTypes without reading anything.
func (o *Orchestrator) IngestSingleType(ctx context.Context, sources []string, opts chunker.Options) (*Result, error) {
	parts := PartitionByExtension(sources)
	if len(parts) > 1 {
		exts := make([]string, len(parts))
		for i, p := range parts {
			exts[i] = p.Extension
		}
		return nil, fmt.Errorf("%w: %v", models.ErrMixedSourceTypes, exts)
	}
	return o.Ingest(ctx, sources, Overrides{"*": opts})
}
