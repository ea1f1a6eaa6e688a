package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/retrieval"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
)

type ProfileRequest struct{}

type ProfileResult struct {
	HasProfile bool                   `json:"has_profile"`
	Profile    *commerce.StyleProfile `json:"style_profile,omitempty"`
	Summary    string                 `json:"summary,omitempty"`
}

func (g *Gateway) profileStyle() Definition {
	return define(ProfileStyle,
		"Read the signed-in customer's saved style preferences: styles, colors, brands, occasions, sizes and budget.",
		func(ctx context.Context, inv contractx.Invocation, _ ProfileRequest) (Outcome, error) {
			if inv.CustomerID == "" {
				return needsInput("the customer is not signed in; ask about their style preferences directly"), nil
			}
			p, err := g.deps.Commerce.StyleProfile(ctx, inv.CustomerID)
			if errors.Is(err, commerce.ErrNotFound) {
				return Outcome{Result: ProfileResult{HasProfile: false}}, nil
			}
			if err != nil {
				return Outcome{}, err
			}
			summary := ProfileSummary(p)
			return Outcome{
				Result: ProfileResult{HasProfile: true, Profile: &p, Summary: summary},
				Data:   map[string]any{"style_profile": p},
			}, nil
		})
}

// ProfileSummary renders a profile as one line of prompt-friendly text.
func ProfileSummary(p commerce.StyleProfile) string {
	var parts []string
	add := func(label string, values []string) {
		if len(values) > 0 {
			parts = append(parts, label+": "+strings.Join(values, ", "))
		}
	}
	add("styles", p.Styles)
	add("colors", p.FavoriteColors)
	add("brands", p.Brands)
	add("occasions", p.Occasions)
	add("sizes", p.Sizes)
	if p.PriceMax > 0 {
		parts = append(parts, fmt.Sprintf("budget: $%.0f-$%.0f", p.PriceMin, p.PriceMax))
	}
	return strings.Join(parts, "; ")
}

// themeSlots lists the product types that make up one outfit per theme.
var themeSlots = map[string][]string{
	"casual":   {"Tops", "Bottoms", "Shoes"},
	"formal":   {"Tops", "Bottoms", "Shoes", "Accessories"},
	"party":    {"Dresses", "Shoes", "Accessories"},
	"vacation": {"Dresses", "Shoes", "Accessories"},
	"wedding":  {"Dresses", "Shoes", "Accessories"},
}

const (
	defaultOutfits = 5
	maxOutfits     = 10
)

type LookbookRequest struct {
	Theme   string `json:"theme" jsonschema:"enum=casual,enum=formal,enum=party,enum=vacation,enum=wedding"`
	Color   string `json:"color,omitempty" jsonschema:"description=Preferred color to lean the looks toward"`
	Outfits int    `json:"outfits,omitempty" jsonschema:"minimum=1,maximum=10"`
}

type Outfit struct {
	OutfitID int           `json:"outfit_id"`
	Products []ProductView `json:"products"`
}

type Lookbook struct {
	Title         string   `json:"title"`
	Theme         string   `json:"theme"`
	Outfits       []Outfit `json:"items"`
	TotalProducts int      `json:"total_products"`
}

func (g *Gateway) lookbookCompose() Definition {
	return define(LookbookCompose,
		"Compose a themed lookbook of complete outfits from the catalog.",
		func(ctx context.Context, _ contractx.Invocation, req LookbookRequest) (Outcome, error) {
			theme := strings.ToLower(strings.TrimSpace(req.Theme))
			slots, ok := themeSlots[theme]
			if !ok {
				return Outcome{}, inputErrorf("unknown theme %q; use casual, formal, party, vacation or wedding", req.Theme)
			}
			count := req.Outfits
			if count <= 0 {
				count = defaultOutfits
			}
			if count > maxOutfits {
				count = maxOutfits
			}

			bySlot := make([][]ProductView, 0, len(slots))
			distinct := map[string]struct{}{}
			depth := 0
			for _, slot := range slots {
				res, err := g.deps.Retriever.SimilaritySearch(ctx, retrieval.Query{
					Text:   strings.TrimSpace(theme + " " + req.Color + " " + slot),
					K:      count,
					Filter: retrieval.Filter{Kind: retrieval.KindProduct, Category: slot},
				})
				if err != nil {
					return Outcome{}, err
				}
				if len(res.Hits) == 0 {
					continue
				}
				views := make([]ProductView, 0, len(res.Hits))
				for _, h := range res.Hits {
					views = append(views, productFromHit(h))
					distinct[h.ID] = struct{}{}
				}
				bySlot = append(bySlot, views)
				depth = max(depth, len(views))
			}

			book := Lookbook{
				Title: strings.ToUpper(theme[:1]) + theme[1:] + " Lookbook",
				Theme: theme,
			}
			for i := 0; i < min(count, depth); i++ {
				outfit := Outfit{OutfitID: i + 1}
				for _, views := range bySlot {
					outfit.Products = append(outfit.Products, views[i%len(views)])
				}
				book.Outfits = append(book.Outfits, outfit)
			}
			book.TotalProducts = len(distinct)

			return Outcome{Result: book, Data: map[string]any{"lookbook": book}}, nil
		})
}
