package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_deterministic(t *testing.T) {
	e := NewHashEmbedder(16)
	ctx := context.Background()

	a, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "something else")
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestHashEmbedder_batchAndCancel(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, 384, e.Dimensions())

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Embed(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	e, err := New(Settings{Provider: ProviderHash, Dimensions: 32, CacheSize: 10})
	require.NoError(t, err)
	assert.IsType(t, &CachedEmbedder{}, e)
	assert.Equal(t, 32, e.Dimensions())

	_, err = New(Settings{Provider: "nope"})
	assert.Error(t, err)

	_, err = New(Settings{Provider: ProviderOpenAI, Dimensions: 8, APIKeyEnv: "VECSYNC_TEST_UNSET_KEY"})
	assert.Error(t, err)
}
