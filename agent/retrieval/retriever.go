package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

var ErrEmbeddingUnavailable = errors.New("embedding function unavailable")

type Query struct {
	Text   string
	Vector []float32
	K      int
	Filter Filter
}

type Result struct {
	Hits []Hit
	// Fallback is set when the hits came from keyword matching because the
	// query could not be embedded.
	Fallback bool
}

type Retriever struct {
	store    VectorStore
	embedder Embedder
	maxK     int
	defaultK int
}

type Option func(*Retriever)

func WithMaxK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.maxK = k
		}
	}
}

func WithDefaultK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.defaultK = k
		}
	}
}

// NewRetriever accepts a nil embedder; every text query then uses the
// keyword fallback.
func NewRetriever(store VectorStore, embedder Embedder, opts ...Option) (*Retriever, error) {
	if store == nil {
		return nil, errors.New("retriever: vector store required")
	}
	r := &Retriever{store: store, embedder: embedder, maxK: 20, defaultK: 8}
	for _, opt := range opts {
		opt(r)
	}
	if r.defaultK > r.maxK {
		r.defaultK = r.maxK
	}
	return r, nil
}

func (r *Retriever) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if r.embedder == nil {
		return nil, ErrEmbeddingUnavailable
	}
	return r.embedder.Embed(ctx, text)
}

// SimilaritySearch returns at most min(K, maxK) hits ordered by score, then
// recency, then id.
func (r *Retriever) SimilaritySearch(ctx context.Context, q Query) (Result, error) {
	k := r.clampK(q.K)

	if len(q.Vector) > 0 {
		hits, err := r.store.Nearest(ctx, q.Vector, k, q.Filter)
		if err != nil {
			return Result{}, fmt.Errorf("similarity search: %w", err)
		}
		return Result{Hits: finish(hits, k)}, nil
	}
	if strings.TrimSpace(q.Text) == "" {
		return Result{}, ErrEmptyQuery
	}

	vec, err := r.Embed(ctx, q.Text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		log.Ctx(ctx).Warn().Err(err).Str("query", q.Text).Msg("embedding unavailable, using keyword fallback")
		hits, kwErr := r.store.Keyword(ctx, Terms(q.Text), k, q.Filter)
		if kwErr != nil {
			return Result{}, fmt.Errorf("keyword fallback: %w", kwErr)
		}
		return Result{Hits: finish(hits, k), Fallback: true}, nil
	}

	hits, err := r.store.Nearest(ctx, vec, k, q.Filter)
	if err != nil {
		return Result{}, fmt.Errorf("similarity search: %w", err)
	}
	return Result{Hits: finish(hits, k)}, nil
}

// Similar searches with the stored vector of an entity, so the entity is
// never re-embedded. The entity itself is excluded from the hits.
func (r *Retriever) Similar(ctx context.Context, kind Kind, id string, k int, f Filter) (Result, error) {
	vec, _, err := r.store.Vector(ctx, kind, id)
	if err != nil {
		return Result{}, fmt.Errorf("vector for %s %s: %w", kind, id, err)
	}
	f.ExcludeIDs = append(append([]string(nil), f.ExcludeIDs...), id)
	return r.SimilaritySearch(ctx, Query{Vector: vec, K: k, Filter: f})
}

func (r *Retriever) clampK(k int) int {
	if k <= 0 {
		k = r.defaultK
	}
	if k > r.maxK {
		k = r.maxK
	}
	return k
}

func finish(hits []Hit, k int) []Hit {
	SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "for": {}, "with": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"me": {}, "my": {}, "i": {}, "im": {}, "is": {}, "it": {}, "some": {}, "any": {}, "show": {}, "find": {},
	"want": {}, "need": {}, "looking": {}, "please": {}, "something": {}, "under": {}, "like": {},
}

// Terms lowercases text and splits it into keyword terms without stopwords.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
