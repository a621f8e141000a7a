package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/hyperjump/vecsync/internal/models"
)

// BadgerStore keeps a collection under the key prefix "<collection>/" in a badger database.
type BadgerStore struct {
	db         *badger.DB
	prefix     []byte
	dimensions int
}

// badgerLogger adapts zap to badger's logger interface.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(msg string, args ...interface{})   { l.s.Errorf(msg, args...) }
func (l badgerLogger) Warningf(msg string, args ...interface{}) { l.s.Warnf(msg, args...) }
func (l badgerLogger) Infof(msg string, args ...interface{})    { l.s.Debugf(msg, args...) }
func (l badgerLogger) Debugf(msg string, args ...interface{})   { l.s.Debugf(msg, args...) }

// NewBadgerStore opens a badger database in dir, or an in-memory one when dir is "".
func NewBadgerStore(dir, collection string, dimensions int, logger *zap.Logger) (*BadgerStore, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = badgerLogger{s: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db, prefix: []byte(collection + "/"), dimensions: dimensions}, nil
}

func (s *BadgerStore) key(id string) []byte {
	k := make([]byte, 0, len(s.prefix)+len(id))
	k = append(k, s.prefix...)
	return append(k, id...)
}

func (s *BadgerStore) Upsert(ctx context.Context, id string, vector []float32, metadata models.Metadata) error {
	if err := checkDimensions(s.dimensions, vector); err != nil {
		return err
	}
	data, err := encodeEntry(vector, metadata)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(id), data)
	})
}

// scan walks every record of the collection in key order. withValues false skips value reads.
func (s *BadgerStore) scan(withValues bool, fn func(id string, val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		opts.PrefetchValues = withValues
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(s.prefix):])
			if !withValues {
				if err := fn(id, nil); err != nil {
					return err
				}
				continue
			}
			if err := item.Value(func(val []byte) error { return fn(id, val) }); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := checkDimensions(s.dimensions, vector); err != nil {
		return nil, err
	}
	top := newTopK(k)
	err := s.scan(true, func(id string, val []byte) error {
		vec, md, err := decodeEntry(val)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		top.offer(id, CosineSimilarity(vector, vec), md)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return top.result(), nil
}

func (s *BadgerStore) DropCollection(ctx context.Context) error {
	return s.db.DropPrefix(s.prefix)
}

func (s *BadgerStore) Exists(ctx context.Context, id string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(s.key(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *BadgerStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.scan(false, func(string, []byte) error {
		n++
		return nil
	})
	return n, err
}

func (s *BadgerStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.scan(false, func(id string, _ []byte) error {
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

func (s *BadgerStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(s.key(id)); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return wb.Flush()
}

func (s *BadgerStore) GetMetadata(ctx context.Context, id string) (models.Metadata, bool, error) {
	var md models.Metadata
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			_, md, err = decodeEntry(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return md, true, nil
}

func (s *BadgerStore) GetAllMetadata(ctx context.Context) ([]Record, error) {
	var out []Record
	err := s.scan(true, func(id string, val []byte) error {
		_, md, err := decodeEntry(val)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		out = append(out, Record{ID: id, Metadata: md})
		return nil
	})
	return out, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
