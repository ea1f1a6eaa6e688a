package tool

import (
	"context"
	"errors"
	"math"
	"strings"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/retrieval"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
)

type ProductView struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"product_name"`
	Brand     string  `json:"brand_name,omitempty"`
	Category  string  `json:"product_type,omitempty"`
	Color     string  `json:"color,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

func productFromHit(h retrieval.Hit) ProductView {
	return ProductView{
		ProductID: h.ID,
		Name:      h.Title,
		Brand:     h.Brand,
		Category:  h.Category,
		Color:     h.Color,
		Price:     h.Price,
		Score:     math.Round(h.Score*1000) / 1000,
	}
}

func productFromModel(p commerce.Product) ProductView {
	return ProductView{
		ProductID: p.ID,
		Name:      p.Name,
		Brand:     p.Brand,
		Category:  p.Type,
		Color:     p.Color,
		Price:     p.Price,
	}
}

type SearchRequest struct {
	Query    string  `json:"query" jsonschema:"description=What the customer is looking for in their own words"`
	Category string  `json:"category,omitempty" jsonschema:"description=Product type such as Dresses or Shoes"`
	Color    string  `json:"color,omitempty"`
	Gender   string  `json:"gender,omitempty" jsonschema:"enum=women,enum=men,enum=unisex"`
	Brand    string  `json:"brand,omitempty"`
	PriceMin float64 `json:"price_min,omitempty" jsonschema:"minimum=0"`
	PriceMax float64 `json:"price_max,omitempty" jsonschema:"minimum=0"`
	Limit    int     `json:"limit,omitempty" jsonschema:"minimum=1,maximum=20"`
}

type SearchResult struct {
	Products []ProductView `json:"products"`
	Count    int           `json:"count"`
	Fallback bool          `json:"keyword_fallback,omitempty"`
}

func (g *Gateway) catalogSearch() Definition {
	return define(CatalogSearch,
		"Search the product catalog by meaning with optional category, color, gender, brand and price filters.",
		func(ctx context.Context, inv contractx.Invocation, req SearchRequest) (Outcome, error) {
			if strings.TrimSpace(req.Query) == "" {
				return Outcome{}, inputErrorf("query is required")
			}
			hinted := req
			fromQuery := fillHints(&hinted, req.Query)
			fromMessage := fillHints(&hinted, inv.Message)

			res, err := g.search(ctx, hinted)
			if err != nil {
				return Outcome{}, err
			}
			// Hints only narrow a search; they never empty it.
			if len(res.Hits) == 0 && (fromQuery || fromMessage) {
				if res, err = g.search(ctx, req); err != nil {
					return Outcome{}, err
				}
			}
			out := searchOutcome(res)
			scratchPut(inv, scratchLastResults, ids(res.Hits))
			return out, nil
		})
}

func (g *Gateway) search(ctx context.Context, req SearchRequest) (retrieval.Result, error) {
	return g.deps.Retriever.SimilaritySearch(ctx, retrieval.Query{
		Text: req.Query,
		K:    req.Limit,
		Filter: retrieval.Filter{
			Kind:     retrieval.KindProduct,
			Category: req.Category,
			Color:    req.Color,
			Gender:   req.Gender,
			Brand:    req.Brand,
			PriceMin: req.PriceMin,
			PriceMax: req.PriceMax,
		},
	})
}

type SimilarRequest struct {
	ProductID string `json:"product_id,omitempty" jsonschema:"description=Product to find alternatives for. Leave empty to recommend from the customer's style profile"`
	Limit     int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=20"`
}

type SimilarResult struct {
	Products []ProductView `json:"products"`
	Basis    string        `json:"basis"`
}

// catalogSimilar recommends by product vector, then by the stored style
// profile vector, then by sales.
func (g *Gateway) catalogSimilar() Definition {
	return define(CatalogSimilar,
		"Recommend products similar to a given product or matching the signed-in customer's style profile.",
		func(ctx context.Context, inv contractx.Invocation, req SimilarRequest) (Outcome, error) {
			filter := retrieval.Filter{Kind: retrieval.KindProduct}

			if req.ProductID != "" {
				res, err := g.deps.Retriever.Similar(ctx, retrieval.KindProduct, req.ProductID, req.Limit, filter)
				if errors.Is(err, retrieval.ErrNotFound) {
					return Outcome{}, inputErrorf("product %s is not in the catalog", req.ProductID)
				}
				if err != nil {
					return Outcome{}, err
				}
				return similarOutcome(res.Hits, "product"), nil
			}

			if inv.CustomerID != "" {
				res, err := g.deps.Retriever.Similar(ctx, retrieval.KindStyleProfile, inv.CustomerID, req.Limit, filter)
				switch {
				case err == nil && len(res.Hits) > 0:
					return similarOutcome(res.Hits, "style_profile"), nil
				case err != nil && !errors.Is(err, retrieval.ErrNotFound):
					return Outcome{}, err
				}
			}

			limit := req.Limit
			if limit <= 0 {
				limit = 5
			}
			trending, err := g.deps.Commerce.Trending(ctx, limit)
			if err != nil {
				return Outcome{}, err
			}
			views := make([]ProductView, 0, len(trending))
			for _, p := range trending {
				views = append(views, productFromModel(p))
			}
			return Outcome{
				Result: SimilarResult{Products: views, Basis: "trending"},
				Data:   map[string]any{"recommendations": views, "type": "trending"},
			}, nil
		})
}

type ReviewsRequest struct {
	ProductID string `json:"product_id,omitempty"`
	Query     string `json:"query,omitempty" jsonschema:"description=Topic to look for in reviews such as fit or fabric"`
	Limit     int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=20"`
}

type ReviewView struct {
	ReviewID  string  `json:"review_id"`
	ProductID string  `json:"product_id"`
	Rating    int     `json:"rating,omitempty"`
	Title     string  `json:"title,omitempty"`
	Text      string  `json:"text,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

type ReviewsResult struct {
	Reviews       []ReviewView `json:"reviews"`
	AverageRating float64      `json:"average_rating,omitempty"`
}

func (g *Gateway) reviewsSearch() Definition {
	return define(ReviewsSearch,
		"Read customer reviews for a product or search reviews by topic.",
		func(ctx context.Context, _ contractx.Invocation, req ReviewsRequest) (Outcome, error) {
			if req.ProductID == "" && strings.TrimSpace(req.Query) == "" {
				return Outcome{}, inputErrorf("product_id or query is required")
			}

			var views []ReviewView
			if strings.TrimSpace(req.Query) != "" {
				res, err := g.deps.Retriever.SimilaritySearch(ctx, retrieval.Query{
					Text:   req.Query,
					K:      req.Limit,
					Filter: retrieval.Filter{Kind: retrieval.KindReview, ParentID: req.ProductID},
				})
				if err != nil {
					return Outcome{}, err
				}
				for _, h := range res.Hits {
					views = append(views, ReviewView{
						ReviewID:  h.ID,
						ProductID: h.ParentID,
						Rating:    ratingOf(h.Attributes),
						Title:     h.Title,
						Text:      h.Body,
						Score:     math.Round(h.Score*1000) / 1000,
					})
				}
			} else {
				reviews, err := g.deps.Commerce.Reviews(ctx, req.ProductID, req.Limit)
				if err != nil {
					return Outcome{}, err
				}
				for _, r := range reviews {
					views = append(views, ReviewView{
						ReviewID:  r.ID,
						ProductID: r.ProductID,
						Rating:    r.Rating,
						Title:     r.Title,
						Text:      r.Text,
					})
				}
			}

			result := ReviewsResult{Reviews: views, AverageRating: averageRating(views)}
			return Outcome{Result: result, Data: map[string]any{"reviews": views}}, nil
		})
}

func searchOutcome(res retrieval.Result) Outcome {
	views := make([]ProductView, 0, len(res.Hits))
	for _, h := range res.Hits {
		views = append(views, productFromHit(h))
	}
	return Outcome{
		Result: SearchResult{Products: views, Count: len(views), Fallback: res.Fallback},
		Data:   map[string]any{"products": views},
	}
}

func similarOutcome(hits []retrieval.Hit, basis string) Outcome {
	views := make([]ProductView, 0, len(hits))
	for _, h := range hits {
		views = append(views, productFromHit(h))
	}
	return Outcome{
		Result: SimilarResult{Products: views, Basis: basis},
		Data:   map[string]any{"recommendations": views, "type": basis},
	}
}

func ids(hits []retrieval.Hit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ID)
	}
	return out
}

func ratingOf(attrs map[string]any) int {
	switch v := attrs["rating"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func averageRating(views []ReviewView) float64 {
	sum, n := 0, 0
	for _, v := range views {
		if v.Rating > 0 {
			sum += v.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(n)*10) / 10
}
