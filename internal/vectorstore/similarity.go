package vectorstore

import (
	"math"
	"sort"

	"github.com/hyperjump/vecsync/internal/models"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when lengths differ or a norm is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK keeps the k best-scoring hits, highest first. Ties order by id.
type topK struct {
	k    int
	hits []Hit
}

func newTopK(k int) *topK {
	return &topK{k: k, hits: make([]Hit, 0, k+1)}
}

func (t *topK) offer(id string, score float64, md models.Metadata) {
	if t.k <= 0 {
		return
	}
	if len(t.hits) == t.k && !better(score, id, t.hits[len(t.hits)-1]) {
		return
	}
	i := sort.Search(len(t.hits), func(i int) bool { return better(score, id, t.hits[i]) })
	t.hits = append(t.hits, Hit{})
	copy(t.hits[i+1:], t.hits[i:])
	t.hits[i] = Hit{ID: id, Score: score, Metadata: md}
	if len(t.hits) > t.k {
		t.hits = t.hits[:t.k]
	}
}

func better(score float64, id string, h Hit) bool {
	if score != h.Score {
		return score > h.Score
	}
	return id < h.ID
}

func (t *topK) result() []Hit {
	if len(t.hits) == 0 {
		return nil
	}
	return t.hits
}
