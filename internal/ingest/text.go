package ingest

import (
	"context"

	"github.com/hyperjump/vecsync/internal/chunker"
	"github.com/hyperjump/vecsync/internal/extract"
	"github.com/hyperjump/vecsync/internal/identity"
	"github.com/hyperjump/vecsync/internal/models"
)

// TextEngine extracts a source as one text blob and chunks it. It is the default engine.
type TextEngine struct {
	assigner  *identity.Assigner
	extractor *extract.Extractor
}

// NewTextEngine returns a TextEngine. A nil assigner selects content-addressed SHA-256 ids.
func NewTextEngine(assigner *identity.Assigner) *TextEngine {
	return &TextEngine{assigner: assigner, extractor: extract.NewExtractor()}
}

// Ingest implements Engine.
func (e *TextEngine) Ingest(ctx context.Context, path string, opts chunker.Options) ([]*models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := newItemBuilder(e.assigner, path, opts)
	if err != nil {
		return nil, err
	}
	text, err := e.extractor.Extract(b.source)
	if err != nil {
		return nil, err
	}
	b.add(text, nil)
	return b.items, nil
}
