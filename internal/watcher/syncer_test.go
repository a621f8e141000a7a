package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/vecsync/internal/chunker"
	"github.com/hyperjump/vecsync/internal/embedding"
	"github.com/hyperjump/vecsync/internal/ingest"
	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/query"
	"github.com/hyperjump/vecsync/internal/trainer"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

func newSyncer(t *testing.T, opts ...SyncerOption) (*TrainerSyncer, vectorstore.Store) {
	t.Helper()
	store, err := vectorstore.NewMemoryStore("", 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	copts := chunker.DefaultOptions()
	copts.MaxSize, copts.Overlap = 4, 1
	orch, err := ingest.NewOrchestrator(ingest.NewDefaultDispatcher(nil, ""))
	require.NoError(t, err)
	tr, err := trainer.New(orch, store, embedding.NewHashEmbedder(8), trainer.IncrementalAdd,
		trainer.WithOptionsResolver(ingest.Overrides{"*": copts}))
	require.NoError(t, err)
	return NewTrainerSyncer(tr, store, nil, opts...), store
}

func sourceTexts(t *testing.T, store vectorstore.Store, source string) []string {
	t.Helper()
	recs, err := query.NewScanner(store).ScanByFilter(context.Background(), models.MetaSource, source)
	require.NoError(t, err)
	var out []string
	for _, r := range recs {
		out = append(out, r.Metadata[models.MetaText].(string))
	}
	return out
}

func TestTrainerSyncer_SyncPrunesStaleChunks(t *testing.T) {
	ctx := context.Background()
	s, store := newSyncer(t)
	dir := tempDir(t)
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeFile(t, a, "ABCDEFGHIJ")
	writeFile(t, b, "0123456")

	require.NoError(t, s.SyncFiles(ctx, []string{a, b}))
	assert.ElementsMatch(t, []string{"ABCD", "DEFG", "GHIJ"}, sourceTexts(t, store, a))
	assert.ElementsMatch(t, []string{"0123", "3456"}, sourceTexts(t, store, b))

	writeFile(t, a, "ABCDEFGHIK")
	require.NoError(t, s.SyncFiles(ctx, []string{a}))
	assert.ElementsMatch(t, []string{"ABCD", "DEFG", "GHIK"}, sourceTexts(t, store, a))
	assert.ElementsMatch(t, []string{"0123", "3456"}, sourceTexts(t, store, b))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestTrainerSyncer_UnreadableSourceKeepsItems(t *testing.T) {
	ctx := context.Background()
	s, store := newSyncer(t)
	dir := tempDir(t)
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "ABCDEFGHIJ")
	require.NoError(t, s.SyncFiles(ctx, []string{a}))

	missing := filepath.Join(dir, "missing.txt")
	require.NoError(t, s.SyncFiles(ctx, []string{missing}))
	assert.Len(t, sourceTexts(t, store, a), 3)
}

func TestTrainerSyncer_RemoveFiles(t *testing.T) {
	ctx := context.Background()
	s, store := newSyncer(t)
	dir := tempDir(t)
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeFile(t, a, "ABCDEFGHIJ")
	writeFile(t, b, "0123456")
	require.NoError(t, s.SyncFiles(ctx, []string{a, b}))

	require.NoError(t, s.RemoveFiles(ctx, []string{a, filepath.Join(dir, "never.txt")}))
	assert.Empty(t, sourceTexts(t, store, a))
	assert.Len(t, sourceTexts(t, store, b), 2)
}

func TestTrainerSyncer_RestoresSharedChunks(t *testing.T) {
	ctx := context.Background()
	dir := tempDir(t)
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeFile(t, a, "ABCDEFG")
	writeFile(t, b, "ABCDXYZ")
	s, store := newSyncer(t, WithRestore(func() []string { return []string{a, b} }))

	require.NoError(t, s.SyncFiles(ctx, []string{a, b}))
	assert.ElementsMatch(t, []string{"ABCD", "DEFG"}, sourceTexts(t, store, a))
	assert.ElementsMatch(t, []string{"DXYZ"}, sourceTexts(t, store, b))

	// a no longer contains ABCD; b still does.
	writeFile(t, a, "QRST")
	require.NoError(t, s.SyncFiles(ctx, []string{a}))
	assert.ElementsMatch(t, []string{"QRST"}, sourceTexts(t, store, a))
	assert.ElementsMatch(t, []string{"ABCD", "DXYZ"}, sourceTexts(t, store, b))

	writeFile(t, a, "ABCDEFG")
	require.NoError(t, s.SyncFiles(ctx, []string{a}))
	require.NoError(t, os.Remove(a))
	require.NoError(t, s.RemoveFiles(ctx, []string{a}))
	assert.Empty(t, sourceTexts(t, store, a))
	assert.ElementsMatch(t, []string{"ABCD", "DXYZ"}, sourceTexts(t, store, b))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestTrainerSyncer_HoldsCollectionLock(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	s, store := newSyncer(t, WithLock(&mu))
	a := filepath.Join(tempDir(t), "a.txt")
	writeFile(t, a, "ABCDEFGHIJ")

	mu.Lock()
	done := make(chan error, 1)
	go func() { done <- s.SyncFiles(ctx, []string{a}) }()
	select {
	case <-done:
		t.Fatal("sync wrote while another writer held the lock")
	case <-time.After(100 * time.Millisecond):
	}
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	mu.Unlock()
	require.NoError(t, <-done)
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	mu.Lock()
	go func() { done <- s.RemoveFiles(ctx, []string{a}) }()
	select {
	case <-done:
		t.Fatal("remove ran while another writer held the lock")
	case <-time.After(100 * time.Millisecond):
	}
	mu.Unlock()
	require.NoError(t, <-done)
	assert.Empty(t, sourceTexts(t, store, a))
}

func TestWatcher_EndToEnd(t *testing.T) {
	s, store := newSyncer(t)
	dir := tempDir(t)
	a := filepath.Join(dir, "a.txt")
	writeFile(t, a, "ABCDEFGHIJ")

	w := New([]string{dir}, []string{".txt"}, true, s)
	startWatcher(t, w)
	w.SyncExistingFiles()
	w.Flush()
	assert.Len(t, sourceTexts(t, store, a), 3)
}
