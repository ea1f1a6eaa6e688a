package tool

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/retrieval"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
)

var testNow = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

// hashEmbedder is a deterministic bag-of-words embedder.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 64)
	for _, term := range retrieval.Terms(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(term))
		vec[h.Sum32()%64]++
	}
	return vec, nil
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding backend down")
}

type mapScratch map[string]any

func (m mapScratch) Put(key string, value any) { m[key] = value }

func (m mapScratch) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func newTestGateway(t *testing.T) (*Gateway, *commerce.MemoryService) {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return testNow }

	seed, err := commerce.LoadSeed()
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	svc := commerce.NewMemoryService(commerce.WithClock(clock))
	seed.Apply(svc, testNow)

	entities, err := CatalogEntities(ctx, svc)
	if err != nil {
		t.Fatalf("CatalogEntities() error = %v", err)
	}
	store := retrieval.NewMemoryStore()
	if _, err := retrieval.NewIndexer(store, hashEmbedder{}, 2).Index(ctx, entities); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	// Queries go through the keyword fallback so rankings are exact.
	r, err := retrieval.NewRetriever(store, downEmbedder{})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	g, err := NewGateway(Deps{Retriever: r, Commerce: svc, Now: clock})
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	return g, svc
}

func call(name string, args map[string]any) contractx.ToolCall {
	return contractx.ToolCall{ID: "call_1", Name: name, Args: args}
}

func hasDirective(res contractx.ToolResult, d contractx.Directive) bool {
	for _, got := range res.Directives {
		if got == d {
			return true
		}
	}
	return false
}

func TestSpecsCoverCatalog(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	specs, err := g.Specs(g.Names())
	if err != nil {
		t.Fatalf("Specs() error = %v", err)
	}
	if len(specs) != 12 {
		t.Fatalf("len(specs) = %d, want 12", len(specs))
	}
	for _, s := range specs {
		if strings.ContainsAny(s.Name, ".- ") {
			t.Fatalf("tool name %q must be [a-z_]", s.Name)
		}
		if s.Parameters == nil || s.Description == "" {
			t.Fatalf("spec %s incomplete", s.Name)
		}
	}

	search, err := g.Specs([]string{CatalogSearch})
	if err != nil {
		t.Fatalf("Specs() error = %v", err)
	}
	if len(search[0].Parameters.Required) != 1 || search[0].Parameters.Required[0] != "query" {
		t.Fatalf("catalog_search required = %v, want [query]", search[0].Parameters.Required)
	}

	if _, err := g.Specs([]string{"inventory_query"}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("unknown tool error = %v, want ErrValidation", err)
	}
}

func TestExecuteUnknownToolReturnsErrorResult(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	res := g.Execute(context.Background(), contractx.Invocation{}, call("math_evaluate", nil))
	if res.Error == "" || res.CallID != "call_1" {
		t.Fatalf("result = %+v, want error result", res)
	}
}

func TestCatalogSearchRanksAndRecordsScratch(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	scratch := mapScratch{}
	res := g.Execute(context.Background(), contractx.Invocation{Scratch: scratch}, call(CatalogSearch, map[string]any{
		"query": "blue dress",
	}))
	if res.Error != "" {
		t.Fatalf("unexpected tool error: %s", res.Error)
	}
	out, ok := res.Result.(SearchResult)
	if !ok {
		t.Fatalf("unexpected result type %T", res.Result)
	}
	if out.Count == 0 || out.Products[0].ProductID != "P-1001" || !out.Fallback {
		t.Fatalf("search = %+v, want P-1001 first via keyword fallback", out)
	}
	if _, ok := res.Data["products"]; !ok {
		t.Fatal("search result missing products payload")
	}
	if ids, _ := scratch[scratchLastResults].([]string); len(ids) != out.Count {
		t.Fatalf("scratch last_results = %v", scratch[scratchLastResults])
	}
}

func TestCatalogSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	res := g.Execute(context.Background(), contractx.Invocation{}, call(CatalogSearch, map[string]any{"query": " "}))
	if res.Error != "query is required" {
		t.Fatalf("Error = %q", res.Error)
	}
}

func TestCatalogSimilarBasis(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	ctx := context.Background()

	byProduct := g.Execute(ctx, contractx.Invocation{}, call(CatalogSimilar, map[string]any{"product_id": "P-1001", "limit": 3}))
	got, ok := byProduct.Result.(SimilarResult)
	if !ok || got.Basis != "product" || len(got.Products) != 3 {
		t.Fatalf("by product = %+v (%s)", byProduct.Result, byProduct.Error)
	}
	for _, p := range got.Products {
		if p.ProductID == "P-1001" {
			t.Fatal("similar results include the source product")
		}
	}

	byProfile := g.Execute(ctx, contractx.Invocation{CustomerID: "C-1001"}, call(CatalogSimilar, nil))
	if got, ok := byProfile.Result.(SimilarResult); !ok || got.Basis != "style_profile" || len(got.Products) == 0 {
		t.Fatalf("by profile = %+v (%s)", byProfile.Result, byProfile.Error)
	}

	trending := g.Execute(ctx, contractx.Invocation{}, call(CatalogSimilar, map[string]any{"limit": 1}))
	if got, ok := trending.Result.(SimilarResult); !ok || got.Basis != "trending" || got.Products[0].ProductID != "P-1016" {
		t.Fatalf("trending = %+v (%s)", trending.Result, trending.Error)
	}

	missing := g.Execute(ctx, contractx.Invocation{}, call(CatalogSimilar, map[string]any{"product_id": "P-9999"}))
	if !strings.Contains(missing.Error, "P-9999") {
		t.Fatalf("missing product error = %q", missing.Error)
	}
}

func TestLookbookComposesThemedOutfits(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	res := g.Execute(context.Background(), contractx.Invocation{}, call(LookbookCompose, map[string]any{"theme": "party"}))
	book, ok := res.Result.(Lookbook)
	if !ok {
		t.Fatalf("unexpected result %T (%s)", res.Result, res.Error)
	}
	if len(book.Outfits) == 0 || len(book.Outfits) > defaultOutfits {
		t.Fatalf("outfits = %d", len(book.Outfits))
	}
	first := book.Outfits[0]
	if len(first.Products) != 3 || first.Products[0].ProductID != "P-1003" {
		t.Fatalf("first outfit = %+v", first)
	}

	bad := g.Execute(context.Background(), contractx.Invocation{}, call(LookbookCompose, map[string]any{"theme": "space"}))
	if bad.Error == "" {
		t.Fatal("unknown theme accepted")
	}
}

func TestCartSummary(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	empty := g.Execute(context.Background(), contractx.Invocation{}, call(CartSummary, nil))
	if !empty.NeedsInput || empty.Data["cart_empty"] != true {
		t.Fatalf("empty cart result = %+v", empty)
	}

	res := g.Execute(context.Background(), contractx.Invocation{Cart: []contractx.CartItem{
		{ProductID: "P-1004", UnitPrice: 19, Quantity: 2},
	}}, call(CartSummary, nil))
	out, ok := res.Result.(CartSummaryResult)
	if !ok || out.Total != 51.04 || out.Lines[0].SKUID != "P-1004" {
		t.Fatalf("summary = %+v", res.Result)
	}
	if !hasDirective(res, contractx.DirectiveConfirmOrder) {
		t.Fatalf("directives = %v", res.Directives)
	}
}

func TestOrderPlace(t *testing.T) {
	t.Parallel()

	g, svc := newTestGateway(t)
	ctx := context.Background()
	cart := []contractx.CartItem{{ProductID: "P-1010", SKUID: "SKU-1010-42", Name: "White Leather Sneakers", UnitPrice: 89, Quantity: 1}}

	guest := g.Execute(ctx, contractx.Invocation{Cart: cart}, call(OrderPlace, map[string]any{"confirm": true}))
	if !guest.NeedsInput {
		t.Fatalf("guest order = %+v, want needs input", guest)
	}

	unconfirmed := g.Execute(ctx, contractx.Invocation{CustomerID: "C-1003", Cart: cart}, call(OrderPlace, map[string]any{"confirm": false}))
	if !unconfirmed.NeedsInput || !hasDirective(unconfirmed, contractx.DirectiveConfirmOrder) {
		t.Fatalf("unconfirmed order = %+v", unconfirmed)
	}

	placed := g.Execute(ctx, contractx.Invocation{CustomerID: "C-1003", Cart: cart}, call(OrderPlace, map[string]any{"confirm": true}))
	out, ok := placed.Result.(OrderPlaced)
	if !ok || !strings.HasPrefix(out.OrderNumber, "ORD-") {
		t.Fatalf("placed = %+v (%s)", placed.Result, placed.Error)
	}
	if !hasDirective(placed, contractx.DirectiveClearCart) {
		t.Fatalf("directives = %v, want clear_cart", placed.Directives)
	}

	o, err := svc.Order(ctx, out.OrderNumber)
	if err != nil || o.Lines[0].SKUID != "SKU-1010-42" {
		t.Fatalf("stored order = %+v, %v", o, err)
	}
}

func TestReturnsWithoutOrderAsksForInput(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	res := g.Execute(context.Background(), contractx.Invocation{}, call(ReturnsEligibility, map[string]any{"reason": "too small"}))
	if !res.NeedsInput || res.Error != "" {
		t.Fatalf("result = %+v, want needs input", res)
	}
}

func TestReturnsFlow(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	ctx := context.Background()
	scratch := mapScratch{}
	inv := contractx.Invocation{CustomerID: "C-1001", Scratch: scratch}

	check := g.Execute(ctx, inv, call(ReturnsEligibility, map[string]any{"reason": "size doesn't fit"}))
	elig, ok := check.Result.(EligibilityResult)
	if !ok || !elig.Eligible || elig.OrderNumber != "ORD-5A1C9E02" || elig.DaysSinceOrder != 5 {
		t.Fatalf("eligibility = %+v (%s)", check.Result, check.Error)
	}
	if elig.ReturnReason != "Size doesn't fit" || !hasDirective(check, contractx.DirectiveConfirmReturn) {
		t.Fatalf("eligibility = %+v directives %v", elig, check.Directives)
	}

	created := g.Execute(ctx, inv, call(ReturnsCreate, map[string]any{"confirm": true, "reason": "Size doesn't fit"}))
	ret, ok := created.Result.(ReturnCreated)
	if !ok || ret.OrderNumber != "ORD-5A1C9E02" || ret.Status != commerce.ReturnPending {
		t.Fatalf("created = %+v (%s)", created.Result, created.Error)
	}
	if !hasDirective(created, contractx.DirectiveOpenReturnsFlow) {
		t.Fatalf("directives = %v, want open_returns_flow", created.Directives)
	}

	status := g.Execute(ctx, inv, call(ReturnsStatus, nil))
	if status.Error != "" || status.Result.(map[string]any)["count"] != 1 {
		t.Fatalf("status = %+v", status)
	}
}

func TestReturnsCreateRejectsExpiredOrder(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	inv := contractx.Invocation{CustomerID: "C-1001"}

	check := g.Execute(context.Background(), inv, call(ReturnsEligibility, map[string]any{"order_number": "ORD-77B3D410"}))
	if elig, ok := check.Result.(EligibilityResult); !ok || elig.Eligible {
		t.Fatalf("eligibility = %+v", check.Result)
	}
	res := g.Execute(context.Background(), inv, call(ReturnsCreate, map[string]any{"order_number": "ORD-77B3D410", "confirm": true}))
	if !strings.Contains(res.Error, "30-day") {
		t.Fatalf("Error = %q", res.Error)
	}
}

func TestOrderStatusHidesForeignOrders(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	res := g.Execute(context.Background(), contractx.Invocation{CustomerID: "C-1002"}, call(OrderStatus, map[string]any{"order_number": "ORD-5A1C9E02"}))
	if !strings.Contains(res.Error, "not found") {
		t.Fatalf("Error = %q", res.Error)
	}
}

func TestPolicyLookup(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	res := g.Execute(context.Background(), contractx.Invocation{}, call(PolicyLookup, map[string]any{"topic": "shipping"}))
	if res.Error != "" || !strings.Contains(res.Result.(map[string]any)["policy"].(string), "Express") {
		t.Fatalf("policy = %+v", res)
	}
	bad := g.Execute(context.Background(), contractx.Invocation{}, call(PolicyLookup, map[string]any{"topic": "warranty"}))
	if bad.Error == "" {
		t.Fatal("unknown topic accepted")
	}
}

func TestFillHints(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		in   SearchRequest
		want SearchRequest
		ok   bool
	}{
		{"Find me a blue dress", SearchRequest{}, SearchRequest{Category: "Dresses", Color: "blue"}, true},
		{"men's shirts under $50", SearchRequest{}, SearchRequest{Category: "Tops", Gender: "men", PriceMax: 50}, true},
		{"something for the ladies below 60.50", SearchRequest{}, SearchRequest{Gender: "women", PriceMax: 60.5}, true},
		{"red dress", SearchRequest{Color: "navy"}, SearchRequest{Category: "Dresses", Color: "navy"}, true},
		{"anything nice", SearchRequest{}, SearchRequest{}, false},
	}
	for _, tc := range cases {
		got := tc.in
		ok := fillHints(&got, tc.text)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("fillHints(%q) = %+v, %v; want %+v, %v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCatalogSearchNarrowsByHints(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	ctx := context.Background()

	res := g.Execute(ctx, contractx.Invocation{Message: "Find me a blue dress"}, call(CatalogSearch, map[string]any{"query": "blue dress"}))
	out, _ := res.Result.(SearchResult)
	if out.Count == 0 {
		t.Fatalf("search = %+v, want blue dresses", res)
	}
	for _, p := range out.Products {
		if p.Color != "blue" || p.Category != "Dresses" {
			t.Fatalf("product %s (%s, %s) is not a blue dress", p.Name, p.Color, p.Category)
		}
	}

	res = g.Execute(ctx, contractx.Invocation{Message: "dresses for women under $60"}, call(CatalogSearch, map[string]any{"query": "dress"}))
	out, _ = res.Result.(SearchResult)
	if out.Count == 0 {
		t.Fatalf("search = %+v, want dresses under $60", res)
	}
	for _, p := range out.Products {
		if p.Category != "Dresses" || p.Price > 60 {
			t.Fatalf("product %s (%s, $%.2f) breaks the hinted filters", p.Name, p.Category, p.Price)
		}
	}
}

func TestCatalogSearchDropsHintsThatMatchNothing(t *testing.T) {
	t.Parallel()

	g, _ := newTestGateway(t)
	res := g.Execute(context.Background(), contractx.Invocation{}, call(CatalogSearch, map[string]any{"query": "purple dress"}))
	out, _ := res.Result.(SearchResult)
	if res.Error != "" || out.Count == 0 {
		t.Fatalf("search = %+v, want unhinted results", res)
	}
}
