package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "test query",
		QueryTime: 42,
		Total:     2,
		Results: []*models.SearchResult{
			{ID: "a1", Score: 0.9, Rank: 1, Text: "first\nchunk   text", Source: "/docs/a.txt"},
			{ID: "b2", Score: 0.5, Rank: 2, Text: strings.Repeat("x", 300)},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{" compact ", OutputCompact, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestWriteSearchResults(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteSearchResults(&buf, sampleResponse(), OutputJSON))
		var decoded models.SearchResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "test query", decoded.Query)
		assert.EqualValues(t, 42, decoded.QueryTime)
		require.Len(t, decoded.Results, 2)
		assert.Equal(t, "a1", decoded.Results[0].ID)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteSearchResults(&buf, sampleResponse(), OutputText))
		out := buf.String()
		assert.Contains(t, out, "Found 2 results in 42ms")
		assert.Contains(t, out, "Rank: 1 | Score: 0.9000")
		assert.Contains(t, out, "Source: /docs/a.txt")
		assert.Contains(t, out, strings.Repeat("x", 200)+"...")
		assert.NotContains(t, out, strings.Repeat("x", 201))
	})

	t.Run("compact", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteSearchResults(&buf, sampleResponse(), OutputCompact))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "1\t0.9000\ta1\tfirst chunk text", lines[0])
	})
}

func TestWriteTrainResult(t *testing.T) {
	res := &models.TrainResult{
		RunID:          "run-1",
		Strategy:       "incremental_add",
		Counts:         models.Counts{Processed: 3, Skipped: 1},
		SourceFailures: []models.SourceFailure{{Source: "bad.pdf", Error: "invalid header"}},
		ItemFailures:   []models.ItemFailure{{ID: "x", Source: "a.txt", Error: "provider down"}},
		Duration:       1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTrainResult(&buf, res, OutputText))
	out := buf.String()
	assert.Contains(t, out, "processed:  3")
	assert.Contains(t, out, "skipped:    1")
	assert.Contains(t, out, "source failed: bad.pdf: invalid header")
	assert.Contains(t, out, "item failed:   x (a.txt): provider down")
	assert.Contains(t, out, "1.5s")

	buf.Reset()
	require.NoError(t, WriteTrainResult(&buf, res, OutputCompact))
	assert.Equal(t, "incremental_add\tprocessed=3\tupdated=0\tskipped=1\tfailed=0\tsource_failures=1\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteTrainResult(&buf, res, OutputJSON))
	var decoded models.TrainResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, res.Counts, decoded.Counts)
}

func TestWriteItems(t *testing.T) {
	items := []*models.Item{
		models.NewItem("id1", "ABCD", "/a.txt", ".txt", 0, nil),
		models.NewItem("id2", "DEFG", "/a.txt", ".txt", 1, nil),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteItems(&buf, items, OutputText))
	assert.Equal(t, "id1\t/a.txt\t0\tABCD\nid2\t/a.txt\t1\tDEFG\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteItems(&buf, nil, OutputJSON))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteRecords(t *testing.T) {
	recs := []vectorstore.Record{
		{ID: "id1", Metadata: models.Metadata{"text": "hello world", "source": "/a.txt", "length": 11}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, recs, OutputText))
	out := buf.String()
	assert.Contains(t, out, "1 item(s)")
	assert.Contains(t, out, "  length: 11\n  source: /a.txt\n")
	assert.Contains(t, out, "hello world")

	buf.Reset()
	require.NoError(t, WriteRecords(&buf, recs, OutputCompact))
	assert.Equal(t, "id1\thello world\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteRecords(&buf, nil, OutputJSON))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteStatus(t *testing.T) {
	disk := int64(2048)
	st := &models.Status{Items: 7, Collection: "docs", Backend: "bolt", Strategy: "incremental_add",
		Provider: "hash", Dimensions: 384, StoragePath: "/data/vecsync.db", DiskUsageBytes: &disk}

	var buf bytes.Buffer
	require.NoError(t, WriteStatus(&buf, st, OutputText))
	out := buf.String()
	assert.Contains(t, out, "items:              7")
	assert.Contains(t, out, "backend:            bolt")
	assert.Contains(t, out, "disk_usage_bytes:   2048")

	buf.Reset()
	require.NoError(t, WriteStatus(&buf, st, OutputJSON))
	var decoded models.Status
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *st.DiskUsageBytes, *decoded.DiskUsageBytes)
}
