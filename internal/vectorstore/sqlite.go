package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/vecsync/internal/models"
)

// SQLiteStore keeps one collection per table in a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	table      string
	dimensions int
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the collection table.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath, collection string, dimensions int) (*SQLiteStore, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// WAL allows readers during writes; sqlite still serializes writers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, table: "vs_" + collection, dimensions: dimensions}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		vector BLOB NOT NULL,
		metadata TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`, s.table))
	return err
}

func (s *SQLiteStore) Upsert(ctx context.Context, id string, vector []float32, metadata models.Metadata) error {
	if err := checkDimensions(s.dimensions, vector); err != nil {
		return err
	}
	md, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, vector, metadata, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET vector = excluded.vector, metadata = excluded.metadata,
		 updated_at = excluded.updated_at`, s.table),
		id, float32SliceToBytes(vector), md,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := checkDimensions(s.dimensions, vector); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, vector, metadata FROM %s`, s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	top := newTopK(k)
	for rows.Next() {
		var id, mdJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &mdJSON); err != nil {
			return nil, err
		}
		md, err := decodeMetadata([]byte(mdJSON))
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		top.offer(id, CosineSimilarity(vector, bytesToFloat32Slice(blob)), md)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return top.result(), nil
}

func (s *SQLiteStore) DropCollection(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	return s.initSchema(ctx)
}

func (s *SQLiteStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE id = ?`, s.table), id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&count)
	return count, err
}

func (s *SQLiteStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes ids in a single transaction.
func (s *SQLiteStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetMetadata(ctx context.Context, id string) (models.Metadata, bool, error) {
	var mdJSON string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT metadata FROM %s WHERE id = ?`, s.table), id).Scan(&mdJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	md, err := decodeMetadata([]byte(mdJSON))
	if err != nil {
		return nil, false, err
	}
	return md, true, nil
}

func (s *SQLiteStore) GetAllMetadata(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, metadata FROM %s ORDER BY id`, s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var id, mdJSON string
		if err := rows.Scan(&id, &mdJSON); err != nil {
			return nil, err
		}
		md, err := decodeMetadata([]byte(mdJSON))
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		out = append(out, Record{ID: id, Metadata: md})
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
