package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/tanpawarit/Chative-Retail-Assistant/agent/retrieval"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
)

const indexLimit = 100000

// CatalogEntities projects products, reviews and style profiles into the
// searchable form the indexer embeds.
func CatalogEntities(ctx context.Context, svc commerce.Service) ([]retrieval.Entity, error) {
	products, err := svc.Products(ctx, commerce.ProductQuery{Limit: indexLimit})
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	reviews, err := svc.Reviews(ctx, "", indexLimit)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	profiles, err := svc.StyleProfiles(ctx, indexLimit)
	if err != nil {
		return nil, fmt.Errorf("load style profiles: %w", err)
	}

	out := make([]retrieval.Entity, 0, len(products)+len(reviews)+len(profiles))
	for _, p := range products {
		out = append(out, ProductEntity(p))
	}
	for _, r := range reviews {
		out = append(out, retrieval.Entity{
			ID:         r.ID,
			Kind:       retrieval.KindReview,
			Title:      r.Title,
			Body:       r.Text,
			ParentID:   r.ProductID,
			UpdatedAt:  r.UpdatedAt,
			Attributes: map[string]any{"rating": r.Rating},
		})
	}
	for _, sp := range profiles {
		out = append(out, retrieval.Entity{
			ID:        sp.CustomerID,
			Kind:      retrieval.KindStyleProfile,
			Title:     strings.Join(sp.Styles, " "),
			Body:      ProfileSummary(sp),
			Color:     strings.Join(sp.FavoriteColors, " "),
			Brand:     strings.Join(sp.Brands, " "),
			UpdatedAt: sp.UpdatedAt,
		})
	}
	return out, nil
}

func ProductEntity(p commerce.Product) retrieval.Entity {
	return retrieval.Entity{
		ID:        p.ID,
		Kind:      retrieval.KindProduct,
		Title:     p.Name,
		Body:      p.Description,
		Category:  p.Type,
		Color:     p.Color,
		Gender:    p.Gender,
		Brand:     p.Brand,
		Price:     p.Price,
		UpdatedAt: p.UpdatedAt,
	}
}
