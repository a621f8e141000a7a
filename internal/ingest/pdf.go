package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperjump/vecsync/internal/chunker"
	"github.com/hyperjump/vecsync/internal/extract"
	"github.com/hyperjump/vecsync/internal/identity"
	"github.com/hyperjump/vecsync/internal/models"
)

// PDFEngine chunks each page separately so no chunk spans a page break, and tags chunks with their page.
type PDFEngine struct {
	assigner *identity.Assigner
}

// NewPDFEngine returns a PDFEngine.
func NewPDFEngine(assigner *identity.Assigner) *PDFEngine {
	return &PDFEngine{assigner: assigner}
}

// Ingest implements Engine.
func (e *PDFEngine) Ingest(ctx context.Context, path string, opts chunker.Options) ([]*models.Item, error) {
	b, err := newItemBuilder(e.assigner, path, opts)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(b.source)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	pages, err := extract.PDFPages(content)
	if err != nil {
		return nil, err
	}
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.add(page, models.Metadata{MetaPage: i + 1, MetaPageCount: len(pages)})
	}
	return b.items, nil
}
