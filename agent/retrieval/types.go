// Package retrieval embeds catalog entities and answers similarity queries
// over them, falling back to keyword matching when embedding is unavailable.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("embedding not found")
	ErrEmptyQuery        = errors.New("query needs text or a vector")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

type Kind string

const (
	KindProduct      Kind = "product"
	KindReview       Kind = "review"
	KindStyleProfile Kind = "style_profile"
)

// Entity is the searchable projection of a catalog row.
type Entity struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Title      string         `json:"title"`
	Body       string         `json:"body,omitempty"`
	Category   string         `json:"category,omitempty"`
	Color      string         `json:"color,omitempty"`
	Gender     string         `json:"gender,omitempty"`
	Brand      string         `json:"brand,omitempty"`
	Price      float64        `json:"price,omitempty"`
	ParentID   string         `json:"parent_id,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SourceText is what gets embedded for the entity.
func (e Entity) SourceText() string {
	parts := []string{e.Title, e.Body, e.Category, e.Color, e.Brand, e.Gender}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " | ")
}

func (e Entity) SourceHash() string {
	sum := sha256.Sum256([]byte(e.SourceText()))
	return hex.EncodeToString(sum[:])
}

type Document struct {
	Entity
	Vector []float32
	Hash   string
}

const Unisex = "unisex"

// Filter restricts candidates. Empty fields and zero prices are ignored.
type Filter struct {
	Kind       Kind     `json:"kind,omitempty"`
	Category   string   `json:"category,omitempty"`
	Color      string   `json:"color,omitempty"`
	Gender     string   `json:"gender,omitempty"`
	Brand      string   `json:"brand,omitempty"`
	ParentID   string   `json:"parent_id,omitempty"`
	PriceMin   float64  `json:"price_min,omitempty"`
	PriceMax   float64  `json:"price_max,omitempty"`
	ExcludeIDs []string `json:"exclude_ids,omitempty"`
}

func (f Filter) Match(e Entity) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if !containsFold(e.Category, f.Category) || !containsFold(e.Color, f.Color) ||
		!genderMatch(e.Gender, f.Gender) || !containsFold(e.Brand, f.Brand) {
		return false
	}
	if f.ParentID != "" && e.ParentID != f.ParentID {
		return false
	}
	if f.PriceMin > 0 && e.Price < f.PriceMin {
		return false
	}
	if f.PriceMax > 0 && e.Price > f.PriceMax {
		return false
	}
	for _, id := range f.ExcludeIDs {
		if id == e.ID {
			return false
		}
	}
	return true
}

func containsFold(value, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(want))
}

// genderMatch compares whole values, so "men" never matches "women", and
// lets unisex entities through any gender filter.
func genderMatch(value, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" || strings.EqualFold(value, Unisex) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(value), want)
}

type Hit struct {
	Entity
	Score float64 `json:"score"`
}

// SortHits orders by descending score, then newer entity, then id.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}

type VectorStore interface {
	Nearest(ctx context.Context, vector []float32, k int, f Filter) ([]Hit, error)
	Keyword(ctx context.Context, terms []string, k int, f Filter) ([]Hit, error)
	Upsert(ctx context.Context, docs []Document) error
	// Vector returns the stored vector and its source hash.
	Vector(ctx context.Context, kind Kind, id string) ([]float32, string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
