package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/vecsync/internal/chunker"
	"github.com/hyperjump/vecsync/internal/extract"
	"github.com/hyperjump/vecsync/internal/identity"
	"github.com/hyperjump/vecsync/internal/models"
)

// RecordEngine ingests record-oriented sources (JSON Lines, CSV, XLSX). Each record's text is chunked
// on its own and its scalar fields become chunk metadata.
type RecordEngine struct {
	assigner *identity.Assigner
	reader   *extract.RecordReader
}

// NewRecordEngine returns a RecordEngine reading record text from textField ("" selects "text").
func NewRecordEngine(assigner *identity.Assigner, textField string) *RecordEngine {
	return &RecordEngine{assigner: assigner, reader: extract.NewRecordReader(textField)}
}

// Ingest implements Engine.
func (e *RecordEngine) Ingest(ctx context.Context, path string, opts chunker.Options) ([]*models.Item, error) {
	b, err := newItemBuilder(e.assigner, path, opts)
	if err != nil {
		return nil, err
	}
	err = e.reader.Stream(ctx, b.source, func(r extract.Record) error {
		md := recordMetadata(r.Fields)
		md[MetaRecordIndex] = r.Index
		b.add(r.Text, md)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.items, nil
}

// recordMetadata keeps the field values the stores and range scans understand. Nested objects
// are flattened to their string form.
func recordMetadata(fields map[string]interface{}) models.Metadata {
	md := make(models.Metadata, len(fields)+1)
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
		case string, bool, int, int64, float64, time.Time:
			md[k] = val
		case []interface{}:
			strs := make([]string, 0, len(val))
			for _, x := range val {
				strs = append(strs, fmt.Sprint(x))
			}
			md[k] = strs
		default:
			md[k] = fmt.Sprint(val)
		}
	}
	return md
}
