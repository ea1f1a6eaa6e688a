package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordEmbedder maps each known word to one axis of a small vector space.
type wordEmbedder struct {
	axes  []string
	fail  atomic.Bool
	calls atomic.Int32
}

func newWordEmbedder(axes ...string) *wordEmbedder {
	return &wordEmbedder{axes: axes}
}

func (w *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	w.calls.Add(1)
	if w.fail.Load() {
		return nil, errors.New("embedding backend down")
	}
	vec := make([]float32, len(w.axes))
	lower := strings.ToLower(text)
	for i, axis := range w.axes {
		if strings.Contains(lower, axis) {
			vec[i] = 1
		}
	}
	return vec, nil
}

var t0 = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func seedCatalog(t *testing.T, emb *wordEmbedder) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	entities := []Entity{
		{ID: "p-dress-blue", Kind: KindProduct, Title: "Blue linen dress", Category: "dress", Color: "blue", Price: 59, UpdatedAt: t0},
		{ID: "p-dress-red", Kind: KindProduct, Title: "Red party dress", Category: "dress", Color: "red", Price: 89, UpdatedAt: t0},
		{ID: "p-shirt-blue", Kind: KindProduct, Title: "Blue oxford shirt", Category: "shirt", Color: "blue", Price: 39, UpdatedAt: t0},
		{ID: "p-boots", Kind: KindProduct, Title: "Leather boots", Category: "shoes", Color: "brown", Price: 120, UpdatedAt: t0},
	}
	_, err := NewIndexer(store, emb, 2).Index(context.Background(), entities)
	require.NoError(t, err)
	return store
}

func TestSimilaritySearchRanksByCosine(t *testing.T) {
	t.Parallel()

	emb := newWordEmbedder("blue", "dress", "red", "shirt", "boots")
	r, err := NewRetriever(seedCatalog(t, emb), emb)
	require.NoError(t, err)

	res, err := r.SimilaritySearch(context.Background(), Query{Text: "blue dress", K: 3})
	require.NoError(t, err)
	require.Len(t, res.Hits, 3)
	assert.False(t, res.Fallback)
	assert.Equal(t, "p-dress-blue", res.Hits[0].ID)
	assert.InDelta(t, 1.0, res.Hits[0].Score, 1e-9)
}

func TestSimilaritySearchCapsK(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	docs := make([]Document, 0, 30)
	for i := 0; i < 30; i++ {
		docs = append(docs, Document{
			Entity: Entity{ID: fmt.Sprintf("p-%02d", i), Kind: KindProduct, Title: "item", UpdatedAt: t0},
			Vector: []float32{1, float32(i) / 30},
		})
	}
	require.NoError(t, store.Upsert(context.Background(), docs))

	r, err := NewRetriever(store, nil, WithMaxK(20), WithDefaultK(8))
	require.NoError(t, err)

	res, err := r.SimilaritySearch(context.Background(), Query{Vector: []float32{1, 0}, K: 100})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 20)

	res, err = r.SimilaritySearch(context.Background(), Query{Vector: []float32{1, 0}})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 8)
}

func TestSimilaritySearchBreaksTiesByRecencyThenID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	vec := []float32{0.6, 0.8}
	require.NoError(t, store.Upsert(context.Background(), []Document{
		{Entity: Entity{ID: "b", Kind: KindProduct, UpdatedAt: t0}, Vector: vec},
		{Entity: Entity{ID: "c", Kind: KindProduct, UpdatedAt: t0.Add(time.Hour)}, Vector: vec},
		{Entity: Entity{ID: "a", Kind: KindProduct, UpdatedAt: t0}, Vector: vec},
	}))
	r, err := NewRetriever(store, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		res, err := r.SimilaritySearch(context.Background(), Query{Vector: vec, K: 3})
		require.NoError(t, err)
		ids := []string{res.Hits[0].ID, res.Hits[1].ID, res.Hits[2].ID}
		assert.Equal(t, []string{"c", "a", "b"}, ids)
	}
}

func TestSimilaritySearchAppliesFilter(t *testing.T) {
	t.Parallel()

	emb := newWordEmbedder("blue", "dress", "red", "shirt", "boots")
	r, err := NewRetriever(seedCatalog(t, emb), emb)
	require.NoError(t, err)

	res, err := r.SimilaritySearch(context.Background(), Query{
		Text:   "dress",
		Filter: Filter{Color: "Red", PriceMax: 100},
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "p-dress-red", res.Hits[0].ID)
}

func TestSimilaritySearchFallsBackToKeywords(t *testing.T) {
	t.Parallel()

	emb := newWordEmbedder("blue", "dress", "red", "shirt", "boots")
	store := seedCatalog(t, emb)
	emb.fail.Store(true)

	r, err := NewRetriever(store, emb)
	require.NoError(t, err)

	res, err := r.SimilaritySearch(context.Background(), Query{Text: "show me a blue dress", K: 5})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "p-dress-blue", res.Hits[0].ID)
	assert.InDelta(t, 1.0, res.Hits[0].Score, 1e-9)
}

func TestSimilaritySearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(NewMemoryStore(), nil)
	require.NoError(t, err)
	_, err = r.SimilaritySearch(context.Background(), Query{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSimilarUsesStoredVector(t *testing.T) {
	t.Parallel()

	emb := newWordEmbedder("blue", "dress", "red", "shirt", "boots")
	store := seedCatalog(t, emb)
	before := emb.calls.Load()

	r, err := NewRetriever(store, emb)
	require.NoError(t, err)
	res, err := r.Similar(context.Background(), KindProduct, "p-dress-blue", 2, Filter{})
	require.NoError(t, err)

	assert.Equal(t, before, emb.calls.Load())
	require.Len(t, res.Hits, 2)
	for _, h := range res.Hits {
		assert.NotEqual(t, "p-dress-blue", h.ID)
	}

	_, err = r.Similar(context.Background(), KindProduct, "missing", 2, Filter{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndexerSkipsUnchangedEntities(t *testing.T) {
	t.Parallel()

	emb := newWordEmbedder("blue", "dress")
	store := NewMemoryStore()
	ix := NewIndexer(store, emb, 3)
	entities := []Entity{
		{ID: "p1", Kind: KindProduct, Title: "Blue dress", UpdatedAt: t0},
		{ID: "p2", Kind: KindProduct, Title: "Dress", UpdatedAt: t0},
	}

	stats, err := ix.Index(context.Background(), entities)
	require.NoError(t, err)
	assert.Equal(t, IndexStats{Seen: 2, Embedded: 2}, stats)

	entities[1].Title = "Blue maxi dress"
	stats, err = ix.Index(context.Background(), entities)
	require.NoError(t, err)
	assert.Equal(t, IndexStats{Seen: 2, Embedded: 1, Skipped: 1}, stats)
	assert.Equal(t, 2, store.Len())
}

func TestIndexerReportsEmbeddingFailures(t *testing.T) {
	t.Parallel()

	emb := newWordEmbedder("blue")
	emb.fail.Store(true)
	stats, err := NewIndexer(NewMemoryStore(), emb, 2).Index(context.Background(), []Entity{
		{ID: "p1", Kind: KindProduct, Title: "Blue"},
	})
	require.Error(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Upsert(context.Background(), []Document{{
				Entity: Entity{ID: fmt.Sprintf("p%d", n), Kind: KindProduct},
				Vector: []float32{1, 0},
			}})
			_, _ = store.Nearest(context.Background(), []float32{1, 0}, 3, Filter{})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, store.Len())
}

func TestTermsDropsStopwordsAndDuplicates(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"blue", "dress", "50"}, Terms("Show me a BLUE dress, blue, under $50!"))
}

func TestFilterGenderMatchesWholeValue(t *testing.T) {
	t.Parallel()

	men := Filter{Gender: "men"}
	assert.False(t, men.Match(Entity{Kind: KindProduct, Gender: "women"}))
	assert.True(t, men.Match(Entity{Kind: KindProduct, Gender: "Men"}))
	assert.True(t, men.Match(Entity{Kind: KindProduct, Gender: Unisex}))
	assert.True(t, Filter{}.Match(Entity{Kind: KindProduct, Gender: "women"}))
}
