package query

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

func seed(t *testing.T, store vectorstore.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, n := range []int{5, 10, 15, 20, 25} {
		text := strings.Repeat("x", n)
		md := models.NewItem("", text, "/src/doc.txt", ".txt", i, models.Metadata{
			"title":   fmt.Sprintf("Doc %c", 'A'+i),
			"created": base.AddDate(0, i, 0),
			"tags":    []string{"all", fmt.Sprintf("t%d", i)},
		}).Metadata
		require.NoError(t, store.Upsert(ctx, fmt.Sprintf("id%02d", n), []float32{1, 0}, md))
	}
}

func stores(t *testing.T) map[string]vectorstore.Store {
	mem, err := vectorstore.NewMemoryStore("", 2)
	require.NoError(t, err)
	bolt, err := vectorstore.NewBoltStore(filepath.Join(t.TempDir(), "q.bolt"), "q", 2)
	require.NoError(t, err)
	t.Cleanup(func() {
		mem.Close()
		bolt.Close()
	})
	return map[string]vectorstore.Store{"memory": mem, "bolt": bolt}
}

func ids(recs []vectorstore.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestScanByRange_length(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, store)
			s := NewScanner(store)
			ctx := context.Background()

			tests := []struct {
				name     string
				min, max interface{}
				want     []string
			}{
				{"closed", 10, 20, []string{"id10", "id15", "id20"}},
				{"float bounds", 9.5, 15.0, []string{"id10", "id15"}},
				{"open max", int64(20), nil, []string{"id20", "id25"}},
				{"open min", nil, 5, []string{"id05"}},
				{"both open", nil, nil, []string{"id05", "id10", "id15", "id20", "id25"}},
				{"empty", 26, 30, nil},
			}
			for _, tt := range tests {
				recs, err := s.ScanByRange(ctx, models.MetaLength, tt.min, tt.max)
				require.NoError(t, err, tt.name)
				assert.Equal(t, tt.want, nilIfEmpty(ids(recs)), tt.name)
			}
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestScanByRange_stringsAndTimes(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, store)
			s := NewScanner(store)
			ctx := context.Background()

			recs, err := s.ScanByRange(ctx, "title", "doc b", "DOC C")
			require.NoError(t, err)
			assert.Equal(t, []string{"id10", "id15"}, ids(recs))

			from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
			recs, err = s.ScanByRange(ctx, "created", from, to)
			require.NoError(t, err)
			assert.Equal(t, []string{"id10", "id15"}, ids(recs))

			// Type mismatch: numeric bounds against string values.
			recs, err = s.ScanByRange(ctx, "title", 1, 100)
			require.NoError(t, err)
			assert.Empty(t, recs)

			_, err = s.ScanByRange(ctx, "title", 1, "z")
			assert.ErrorIs(t, err, models.ErrConfiguration)
			_, err = s.ScanByRange(ctx, "title", []int{1}, nil)
			assert.Error(t, err)
		})
	}
}

func TestScanByFilterAndIDs(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, store)
			s := NewScanner(store)
			ctx := context.Background()

			recs, err := s.ScanByFilter(ctx, models.MetaLength, 15)
			require.NoError(t, err)
			assert.Equal(t, []string{"id15"}, ids(recs))

			recs, err = s.ScanByFilter(ctx, "tags", "t3")
			require.NoError(t, err)
			assert.Equal(t, []string{"id20"}, ids(recs))

			recs, err = s.ScanByFilter(ctx, "created", ParseValue("2024-03-01T00:00:00Z"))
			require.NoError(t, err)
			assert.Equal(t, []string{"id15"}, ids(recs))

			got, err := s.ScanIDs(ctx, models.MetaSource, "/src/doc.txt")
			require.NoError(t, err)
			assert.Len(t, got, 5)

			got, err = s.ScanIDs(ctx, "title", "doc a")
			require.NoError(t, err)
			assert.Empty(t, got, "equality is case-sensitive")

			all, err := s.ScanAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestScan_valuesStoredAsText(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, row := range []models.Metadata{
				{"id": "1", "score": "2.5", "active": "true"},
				{"id": "2", "score": "7.5", "active": "false"},
				{"id": "10", "score": "n/a", "active": "TRUE"},
			} {
				require.NoError(t, store.Upsert(ctx, fmt.Sprintf("row%d", i), []float32{1, 0}, row))
			}
			s := NewScanner(store)

			recs, err := s.ScanByFilter(ctx, "id", ParseValue("2"))
			require.NoError(t, err)
			assert.Equal(t, []string{"row1"}, ids(recs))

			recs, err = s.ScanByFilter(ctx, "score", ParseValue("7.50"))
			require.NoError(t, err)
			assert.Equal(t, []string{"row1"}, ids(recs))

			recs, err = s.ScanByFilter(ctx, "active", ParseValue("true"))
			require.NoError(t, err)
			assert.Equal(t, []string{"row0", "row2"}, ids(recs))

			recs, err = s.ScanByRange(ctx, "id", 2, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"row1", "row2"}, ids(recs))

			recs, err = s.ScanByRange(ctx, "score", nil, 5)
			require.NoError(t, err)
			assert.Equal(t, []string{"row0"}, ids(recs), "non-numeric text never matches a numeric range")
		})
	}
}

func TestGetOne(t *testing.T) {
	store, err := vectorstore.NewMemoryStore("", 2)
	require.NoError(t, err)
	seed(t, store)
	s := NewScanner(store)

	rec, err := s.GetOne(context.Background(), "id10")
	require.NoError(t, err)
	assert.Equal(t, "Doc B", rec.Metadata["title"])

	_, err = s.GetOne(context.Background(), "nope")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestParseValue(t *testing.T) {
	assert.Nil(t, ParseValue(" "))
	assert.Equal(t, int64(42), ParseValue("42"))
	assert.Equal(t, 2.5, ParseValue("2.5"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, "hello", ParseValue("hello"))
	assert.Equal(t, "1", fmt.Sprint(ParseValue("1")))
	ts := ParseValue("2024-05-01T10:00:00Z")
	assert.IsType(t, time.Time{}, ts)
}
