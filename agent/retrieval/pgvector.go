package retrieval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const searchText = "concat_ws(' ', e.title, e.body, e.category, e.color, e.brand, e.gender)"

type embeddingRow struct {
	bun.BaseModel `bun:"table:retail.embeddings,alias:e"`

	Kind       string         `bun:"entity_kind,pk"`
	ID         string         `bun:"entity_id,pk"`
	Title      string         `bun:"title"`
	Body       string         `bun:"body"`
	Category   string         `bun:"category"`
	Color      string         `bun:"color"`
	Gender     string         `bun:"gender"`
	Brand      string         `bun:"brand"`
	Price      float64        `bun:"price"`
	ParentID   string         `bun:"parent_id"`
	Attributes map[string]any `bun:"attributes,type:jsonb"`
	UpdatedAt  time.Time      `bun:"updated_at"`
	SourceHash string         `bun:"source_hash"`
	Embedding  string         `bun:"embedding,type:vector"`
	Score      float64        `bun:"score,scanonly"`
}

func (r embeddingRow) hit() Hit {
	return Hit{
		Entity: Entity{
			ID:         r.ID,
			Kind:       Kind(r.Kind),
			Title:      r.Title,
			Body:       r.Body,
			Category:   r.Category,
			Color:      r.Color,
			Gender:     r.Gender,
			Brand:      r.Brand,
			Price:      r.Price,
			ParentID:   r.ParentID,
			Attributes: r.Attributes,
			UpdatedAt:  r.UpdatedAt,
		},
		Score: r.Score,
	}
}

const entityColumns = "e.entity_kind, e.entity_id, e.title, e.body, e.category, e.color, e.gender, e.brand, " +
	"e.price, e.parent_id, e.attributes, e.updated_at, e.source_hash"

// PGVectorStore keeps embeddings in retail.embeddings and ranks by cosine
// distance with the pgvector <=> operator.
type PGVectorStore struct {
	db *bun.DB
}

var _ VectorStore = (*PGVectorStore)(nil)

func NewPGVectorStore(db *bun.DB) *PGVectorStore {
	return &PGVectorStore{db: db}
}

func (s *PGVectorStore) Nearest(ctx context.Context, vector []float32, k int, f Filter) ([]Hit, error) {
	lit := vectorLiteral(vector)
	var rows []embeddingRow
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr(entityColumns).
		ColumnExpr("1 - (e.embedding <=> ?::vector) AS score", lit).
		Where("e.embedding IS NOT NULL").
		OrderExpr("e.embedding <=> ?::vector", lit).
		OrderExpr("e.updated_at DESC").
		OrderExpr("e.entity_id ASC").
		Limit(k)
	applyFilter(q, f)

	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("nearest query: %w", err)
	}
	return toHits(rows), nil
}

func (s *PGVectorStore) Keyword(ctx context.Context, terms []string, k int, f Filter) ([]Hit, error) {
	var rows []embeddingRow
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr(entityColumns).
		Limit(k)
	applyFilter(q, f)

	if len(terms) == 0 {
		q = q.ColumnExpr("0::float8 AS score")
	} else {
		expr, args := keywordScore(terms)
		q = q.ColumnExpr(expr+" AS score", args...).
			Where(expr+" > 0", args...)
	}
	q = q.OrderExpr("score DESC").
		OrderExpr("e.updated_at DESC").
		OrderExpr("e.entity_id ASC")

	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	return toHits(rows), nil
}

func (s *PGVectorStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]embeddingRow, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, embeddingRow{
			Kind:       string(d.Kind),
			ID:         d.ID,
			Title:      d.Title,
			Body:       d.Body,
			Category:   d.Category,
			Color:      d.Color,
			Gender:     d.Gender,
			Brand:      d.Brand,
			Price:      d.Price,
			ParentID:   d.ParentID,
			Attributes: d.Attributes,
			UpdatedAt:  d.UpdatedAt,
			SourceHash: d.Hash,
			Embedding:  vectorLiteral(d.Vector),
		})
	}

	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (entity_kind, entity_id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("body = EXCLUDED.body").
		Set("category = EXCLUDED.category").
		Set("color = EXCLUDED.color").
		Set("gender = EXCLUDED.gender").
		Set("brand = EXCLUDED.brand").
		Set("price = EXCLUDED.price").
		Set("parent_id = EXCLUDED.parent_id").
		Set("attributes = EXCLUDED.attributes").
		Set("updated_at = EXCLUDED.updated_at").
		Set("source_hash = EXCLUDED.source_hash").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert embeddings: %w", err)
	}
	return nil
}

func (s *PGVectorStore) Vector(ctx context.Context, kind Kind, id string) ([]float32, string, error) {
	var row embeddingRow
	err := s.db.NewSelect().
		Model(&row).
		ColumnExpr("e.embedding::text AS embedding, e.source_hash").
		Where("e.entity_kind = ?", string(kind)).
		Where("e.entity_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("load embedding: %w", err)
	}
	vec, err := parseVector(row.Embedding)
	if err != nil {
		return nil, "", err
	}
	return vec, row.SourceHash, nil
}

func applyFilter(q *bun.SelectQuery, f Filter) {
	if f.Kind != "" {
		q.Where("e.entity_kind = ?", string(f.Kind))
	}
	for column, value := range map[string]string{
		"e.category": f.Category,
		"e.color":    f.Color,
		"e.brand":    f.Brand,
	} {
		if v := strings.TrimSpace(value); v != "" {
			q.Where("? ILIKE ?", bun.Ident(column), "%"+v+"%")
		}
	}
	if v := strings.TrimSpace(f.Gender); v != "" {
		q.Where("(lower(e.gender) = lower(?) OR lower(e.gender) = ?)", v, Unisex)
	}
	if f.ParentID != "" {
		q.Where("e.parent_id = ?", f.ParentID)
	}
	if f.PriceMin > 0 {
		q.Where("e.price >= ?", f.PriceMin)
	}
	if f.PriceMax > 0 {
		q.Where("e.price <= ?", f.PriceMax)
	}
	if len(f.ExcludeIDs) > 0 {
		q.Where("e.entity_id NOT IN (?)", bun.In(f.ExcludeIDs))
	}
}

func keywordScore(terms []string) (string, []any) {
	parts := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms))
	for _, term := range terms {
		parts = append(parts, "(CASE WHEN "+searchText+" ILIKE ? THEN 1 ELSE 0 END)")
		args = append(args, "%"+term+"%")
	}
	expr := fmt.Sprintf("((%s)::float8 / %d)", strings.Join(parts, " + "), len(terms))
	return expr, args
}

func toHits(rows []embeddingRow) []Hit {
	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, r.hit())
	}
	return hits
}

func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	out := make([]float32, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		out[i] = float32(x)
	}
	return out, nil
}
