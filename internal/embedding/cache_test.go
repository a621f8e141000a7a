package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

type countingEmbedder struct {
	*HashEmbedder
	single int
	batch  int
	texts  int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.single++
	return c.HashEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batch++
	c.texts += len(texts)
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	c := NewCachedEmbedder(inner, 16)
	ctx := context.Background()

	a1, err := c.Embed(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := c.Embed(ctx, "alpha")
	if inner.single != 1 {
		t.Errorf("inner Embed calls = %d, want 1", inner.single)
	}
	if len(a1) != len(a2) || a1[0] != a2[0] {
		t.Error("cached vector differs")
	}

	vecs, err := c.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	if inner.texts != 2 {
		t.Errorf("inner batch embedded %d texts, want 2", inner.texts)
	}
	if c.Dimensions() != 8 {
		t.Errorf("Dimensions = %d", c.Dimensions())
	}
}

type shortEmbedder struct {
	*HashEmbedder
}

func (s shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.HashEmbedder.EmbedBatch(ctx, texts)
	if err != nil || len(vecs) == 0 {
		return vecs, err
	}
	return vecs[:len(vecs)-1], nil
}

func TestCachedEmbedder_shortBatch(t *testing.T) {
	c := NewCachedEmbedder(shortEmbedder{NewHashEmbedder(8)}, 16)
	ctx := context.Background()
	if _, err := c.EmbedBatch(ctx, []string{"alpha", "beta"}); err == nil {
		t.Fatal("expected error for short batch")
	}
	if _, ok := c.cache.Get("alpha"); ok {
		t.Error("short batch must not populate the cache")
	}
}
