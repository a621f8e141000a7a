package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperjump/vecsync/internal/models"
)

// PgVectorStore keeps a collection in a PostgreSQL table with a pgvector column.
// The database must allow CREATE EXTENSION vector or already have it installed.
type PgVectorStore struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

// NewPgVectorStore connects to dsn and creates the collection table if needed.
func NewPgVectorStore(ctx context.Context, dsn, collection string, dimensions int) (*PgVectorStore, error) {
	if dsn == "" {
		return nil, models.NewConfigurationError("storage.dsn", "required for pgvector backend")
	}
	if dimensions <= 0 {
		return nil, models.NewConfigurationError("embedding.dimensions", "must be positive for pgvector backend")
	}
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect pgvector: %w", err)
	}
	s := &PgVectorStore{pool: pool, table: "vs_" + strings.ToLower(collection), dim: dimensions}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PgVectorStore) initSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    embedding VECTOR(%d) NOT NULL,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb
)`, s.table, s.dim))
	return err
}

func (s *PgVectorStore) Upsert(ctx context.Context, id string, vector []float32, metadata models.Metadata) error {
	if err := checkDimensions(s.dim, vector); err != nil {
		return err
	}
	md, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, embedding, metadata)
VALUES ($1, $2::vector, $3::jsonb)
ON CONFLICT (id) DO UPDATE
SET embedding = EXCLUDED.embedding,
    metadata  = EXCLUDED.metadata`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, vectorLiteral(vector), md); err != nil {
		return fmt.Errorf("upsert vector %s: %w", id, err)
	}
	return nil
}

// Search ranks by pgvector cosine distance; score is 1 - distance.
func (s *PgVectorStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := checkDimensions(s.dim, vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT id, embedding <=> $1::vector AS distance, metadata
FROM %s
ORDER BY distance ASC, id ASC
LIMIT $2`, s.table)
	rows, err := s.pool.Query(ctx, query, vectorLiteral(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			id       string
			distance float64
			raw      []byte
		)
		if err := rows.Scan(&id, &distance, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		md, err := decodeMetadata(raw)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		hits = append(hits, Hit{ID: id, Score: 1.0 - distance, Metadata: md})
	}
	return hits, rows.Err()
}

func (s *PgVectorStore) DropCollection(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	return s.initSchema(ctx)
}

func (s *PgVectorStore) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, s.table), id).Scan(&ok)
	return ok, err
}

func (s *PgVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	return n, err
}

func (s *PgVectorStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id COLLATE "C"`, s.table))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PgVectorStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, s.table), ids)
	return err
}

func (s *PgVectorStore) GetMetadata(ctx context.Context, id string) (models.Metadata, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT metadata FROM %s WHERE id = $1`, s.table), id).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	md, err := decodeMetadata(raw)
	if err != nil {
		return nil, false, err
	}
	return md, true, nil
}

func (s *PgVectorStore) GetAllMetadata(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, metadata FROM %s ORDER BY id COLLATE "C"`, s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		md, err := decodeMetadata(raw)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		out = append(out, Record{ID: id, Metadata: md})
	}
	return out, rows.Err()
}

// Close closes the connection pool.
func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

// vectorLiteral formats v in pgvector's text form: [1,2,3].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
