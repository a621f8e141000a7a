package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hyperjump/vecsync/internal/models"
)

// BoltStore keeps one collection per bucket in a bbolt file.
type BoltStore struct {
	db         *bolt.DB
	bucket     []byte
	dimensions int
}

// NewBoltStore opens or creates the bbolt file at path and ensures the collection bucket exists.
func NewBoltStore(path, collection string, dimensions int) (*BoltStore, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	s := &BoltStore{db: db, bucket: []byte(collection), dimensions: dimensions}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return s, nil
}

func (s *BoltStore) Upsert(ctx context.Context, id string, vector []float32, metadata models.Metadata) error {
	if err := checkDimensions(s.dimensions, vector); err != nil {
		return err
	}
	data, err := encodeEntry(vector, metadata)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(id), data)
	})
}

func (s *BoltStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := checkDimensions(s.dimensions, vector); err != nil {
		return nil, err
	}
	top := newTopK(k)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(key, val []byte) error {
			vec, md, err := decodeEntry(val)
			if err != nil {
				return fmt.Errorf("record %s: %w", key, err)
			}
			top.offer(string(key), CosineSimilarity(vector, vec), md)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return top.result(), nil
}

func (s *BoltStore) DropCollection(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

func (s *BoltStore) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(s.bucket).Get([]byte(id)) != nil
		return nil
	})
	return ok, err
}

func (s *BoltStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(s.bucket).Stats().KeyN)
		return nil
	})
	return n, err
}

// ListIDs returns ids in key order, which is ascending byte order.
func (s *BoltStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(key, _ []byte) error {
			ids = append(ids, string(key))
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) GetMetadata(ctx context.Context, id string) (models.Metadata, bool, error) {
	var (
		md models.Metadata
		ok bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(s.bucket).Get([]byte(id))
		if val == nil {
			return nil
		}
		_, m, err := decodeEntry(val)
		if err != nil {
			return err
		}
		md, ok = m, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return md, ok, nil
}

func (s *BoltStore) GetAllMetadata(ctx context.Context) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(key, val []byte) error {
			_, md, err := decodeEntry(val)
			if err != nil {
				return fmt.Errorf("record %s: %w", key, err)
			}
			out = append(out, Record{ID: string(key), Metadata: md})
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
