package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"
)

type memoryKey struct {
	kind Kind
	id   string
}

type memoryDoc struct {
	Document
	vec  []float64
	norm float64
}

// MemoryStore is an exact-scan vector store for demo mode and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[memoryKey]memoryDoc
}

var _ VectorStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[memoryKey]memoryDoc)}
}

func (s *MemoryStore) Upsert(_ context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" || d.Kind == "" {
			return fmt.Errorf("upsert: document needs kind and id")
		}
		vec := toFloat64(d.Vector)
		s.docs[memoryKey{d.Kind, d.ID}] = memoryDoc{Document: d, vec: vec, norm: floats.Norm(vec, 2)}
	}
	return nil
}

func (s *MemoryStore) Vector(_ context.Context, kind Kind, id string) ([]float32, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[memoryKey{kind, id}]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]float32(nil), d.Vector...), d.Hash, nil
}

func (s *MemoryStore) Nearest(_ context.Context, vector []float32, k int, f Filter) ([]Hit, error) {
	q := toFloat64(vector)
	qnorm := floats.Norm(q, 2)

	s.mu.RLock()
	hits := make([]Hit, 0, len(s.docs))
	for _, d := range s.docs {
		if !f.Match(d.Entity) || len(d.vec) == 0 {
			continue
		}
		if len(d.vec) != len(q) {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: query %d, stored %d", ErrDimensionMismatch, len(q), len(d.vec))
		}
		score := 0.0
		if qnorm > 0 && d.norm > 0 {
			score = floats.Dot(q, d.vec) / (qnorm * d.norm)
		}
		hits = append(hits, Hit{Entity: d.Entity, Score: score})
	}
	s.mu.RUnlock()

	return topK(hits, k), nil
}

// Keyword scores entities by the fraction of terms found in their text.
// With no terms every filtered entity matches with a zero score.
func (s *MemoryStore) Keyword(_ context.Context, terms []string, k int, f Filter) ([]Hit, error) {
	s.mu.RLock()
	hits := make([]Hit, 0, len(s.docs))
	for _, d := range s.docs {
		if !f.Match(d.Entity) {
			continue
		}
		if len(terms) == 0 {
			hits = append(hits, Hit{Entity: d.Entity})
			continue
		}
		text := strings.ToLower(d.SourceText())
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, Hit{Entity: d.Entity, Score: float64(matched) / float64(len(terms))})
		}
	}
	s.mu.RUnlock()

	return topK(hits, k), nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func topK(hits []Hit, k int) []Hit {
	SortHits(hits)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
