// Package ingest turns sources into chunked, identified items ready for synchronization.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/vecsync/internal/chunker"
	"github.com/hyperjump/vecsync/internal/identity"
	"github.com/hyperjump/vecsync/internal/models"
)

// Engine reads one source and returns its chunks as items.
type Engine interface {
	Ingest(ctx context.Context, path string, opts chunker.Options) ([]*models.Item, error)
}

// OptionsResolver returns the chunking options for an extension.
type OptionsResolver interface {
	ResolveOptions(ext string) chunker.Options
}

// Overrides maps extensions to complete options. "*" applies to extensions without an entry;
// chunker.DefaultOptions applies when neither exists.
type Overrides map[string]chunker.Options

// ResolveOptions implements OptionsResolver.
func (o Overrides) ResolveOptions(ext string) chunker.Options {
	ext = normalizeExt(ext)
	if opts, ok := o[ext]; ok && ext != "" {
		return opts
	}
	if opts, ok := o["*"]; ok {
		return opts
	}
	return chunker.DefaultOptions()
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && ext != "*" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Metadata keys set by the engines when UseMetadata is on.
const (
	MetaSourceName  = "source_name"
	MetaExtension   = "extension"
	MetaSourceSize  = "source_size"
	MetaSourceMtime = "source_mtime"
	MetaChunkIndex  = "chunk_index"
	MetaChunkStart  = "chunk_start"
	MetaChunkEnd    = "chunk_end"
	MetaPage        = "page"
	MetaPageCount   = "page_count"
	MetaRecordIndex = "record_index"
)

// itemBuilder chunks text for one source and assigns ids with a running chunk index.
type itemBuilder struct {
	assigner *identity.Assigner
	source   string
	ext      string
	opts     chunker.Options
	base     models.Metadata
	next     int
	items    []*models.Item
}

func newItemBuilder(assigner *identity.Assigner, path string, opts chunker.Options) (*itemBuilder, error) {
	source, err := identity.SourceID(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}
	b := &itemBuilder{
		assigner: assigner,
		source:   source,
		ext:      identity.Extension(source),
		opts:     opts,
	}
	if opts.UseMetadata {
		b.base = models.Metadata{
			MetaSourceName:  filepath.Base(source),
			MetaExtension:   b.ext,
			MetaSourceSize:  info.Size(),
			MetaSourceMtime: info.ModTime().UTC(),
		}
		b.base.Merge(opts.Metadata)
	}
	return b, nil
}

// add splits text and appends one item per chunk. extra is merged only when UseMetadata is on.
func (b *itemBuilder) add(text string, extra models.Metadata) {
	for _, span := range b.opts.Split(text) {
		idx := b.next
		b.next++
		var md models.Metadata
		if b.opts.UseMetadata {
			md = b.base.Clone()
			md.Merge(extra)
			md[MetaChunkIndex] = idx
			md[MetaChunkStart] = span.Start
			md[MetaChunkEnd] = span.End
		}
		id := b.assigner.Assign(b.source, idx, span.Text)
		b.items = append(b.items, models.NewItem(id, span.Text, b.source, b.ext, idx, md))
	}
}
