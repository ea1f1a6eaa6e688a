package tool

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tanpawarit/Chative-Retail-Assistant/agent/retrieval"
)

// categoryTerms maps shopper words onto catalog product types.
var categoryTerms = map[string]string{
	"dress": "Dresses", "dresses": "Dresses", "sundress": "Dresses", "gown": "Dresses",
	"top": "Tops", "tops": "Tops", "shirt": "Tops", "shirts": "Tops", "tee": "Tops", "blouse": "Tops",
	"pants": "Bottoms", "trousers": "Bottoms", "jeans": "Bottoms", "shorts": "Bottoms", "skirt": "Bottoms",
	"shoes": "Shoes", "shoe": "Shoes", "sneakers": "Shoes", "heels": "Shoes", "sandals": "Shoes", "boots": "Shoes",
	"accessories": "Accessories", "earrings": "Accessories", "bag": "Accessories", "tote": "Accessories", "tie": "Accessories",
	"jacket": "Outerwear", "coat": "Outerwear", "outerwear": "Outerwear",
}

var colorTerms = map[string]string{
	"black": "black", "white": "white", "blue": "blue", "navy": "navy", "red": "red",
	"green": "green", "beige": "beige", "tan": "tan", "brown": "brown", "gold": "gold",
	"camel": "camel", "pink": "pink", "grey": "grey", "gray": "grey", "yellow": "yellow",
	"purple": "purple", "orange": "orange", "cream": "cream", "silver": "silver",
}

var genderTerms = map[string]string{
	"women": "women", "womens": "women", "woman": "women", "female": "women", "ladies": "women", "lady": "women",
	"men": "men", "mens": "men", "man": "men", "male": "men", "guys": "men",
}

var priceCeiling = regexp.MustCompile(`(?i)\b(?:under|below|less than|at most|max)\s*\$?\s*(\d+(?:\.\d+)?)`)

// fillHints sets the filters the caller left empty from words in text. It
// reports whether any filter was filled.
func fillHints(req *SearchRequest, text string) bool {
	filled := false
	for _, term := range retrieval.Terms(text) {
		if req.Category == "" {
			if c, ok := categoryTerms[term]; ok {
				req.Category, filled = c, true
			}
		}
		if req.Color == "" {
			if c, ok := colorTerms[term]; ok {
				req.Color, filled = c, true
			}
		}
		if req.Gender == "" {
			if g, ok := genderTerms[term]; ok {
				req.Gender, filled = g, true
			}
		}
	}
	if req.PriceMax == 0 {
		if m := priceCeiling.FindStringSubmatch(strings.ToLower(text)); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
				req.PriceMax, filled = v, true
			}
		}
	}
	return filled
}
