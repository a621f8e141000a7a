// Package vectorstore defines the vector store contract and its backends.
package vectorstore

import (
	"context"

	"github.com/hyperjump/vecsync/internal/models"
)

// Store is a single collection of vectors with per-id metadata. Implementations are safe for concurrent use.
type Store interface {
	// Upsert inserts or replaces the vector and metadata stored under id.
	Upsert(ctx context.Context, id string, vector []float32, metadata models.Metadata) error
	// Search returns up to topK records ordered by descending cosine similarity.
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
	// DropCollection removes every record in the collection.
	DropCollection(ctx context.Context) error
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
	// ListIDs returns all ids in ascending order.
	ListIDs(ctx context.Context) ([]string, error)
	// Delete removes the given ids; unknown ids are ignored.
	Delete(ctx context.Context, ids ...string) error
	// GetMetadata returns the metadata for id; ok is false when the id is absent.
	GetMetadata(ctx context.Context, id string) (md models.Metadata, ok bool, err error)
	// GetAllMetadata returns every record's metadata ordered by id.
	GetAllMetadata(ctx context.Context) ([]Record, error)
	Close() error
}

// Record is one stored id with its metadata.
type Record struct {
	ID       string          `json:"id"`
	Metadata models.Metadata `json:"metadata"`
}

// Hit is one similarity search result.
type Hit struct {
	ID       string          `json:"id"`
	Score    float64         `json:"score"`
	Metadata models.Metadata `json:"metadata"`
}
