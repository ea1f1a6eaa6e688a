package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/retrieval"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
)

const (
	CatalogSearch      = "catalog_search"
	CatalogSimilar     = "catalog_similar"
	ReviewsSearch      = "reviews_search"
	ProfileStyle       = "profile_style"
	LookbookCompose    = "lookbook_compose"
	CartSummary        = "cart_summary"
	OrderPlace         = "order_place"
	OrderStatus        = "order_status"
	ReturnsEligibility = "returns_eligibility"
	ReturnsCreate      = "returns_create"
	ReturnsStatus      = "returns_status"
	PolicyLookup       = "policy_lookup"
)

// Scratch keys written by tools within a turn.
const (
	scratchLastResults = "last_results"
	scratchReturnOrder = "return_order"
)

type Deps struct {
	Retriever *retrieval.Retriever
	Commerce  commerce.Service
	Now       func() time.Time
}

type Gateway struct {
	deps  Deps
	defs  map[string]Definition
	names []string
}

var _ contractx.ToolGateway = (*Gateway)(nil)

func NewGateway(deps Deps) (*Gateway, error) {
	if deps.Retriever == nil {
		return nil, errors.New("tool gateway: retriever is required")
	}
	if deps.Commerce == nil {
		return nil, errors.New("tool gateway: commerce service is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	g := &Gateway{deps: deps, defs: make(map[string]Definition)}
	for _, def := range g.catalog() {
		if _, dup := g.defs[def.Name()]; dup {
			return nil, fmt.Errorf("tool gateway: duplicate tool %q", def.Name())
		}
		g.defs[def.Name()] = def
		g.names = append(g.names, def.Name())
	}
	return g, nil
}

func (g *Gateway) catalog() []Definition {
	return []Definition{
		g.catalogSearch(),
		g.catalogSimilar(),
		g.reviewsSearch(),
		g.profileStyle(),
		g.lookbookCompose(),
		g.cartSummary(),
		g.orderPlace(),
		g.orderStatus(),
		g.returnsEligibility(),
		g.returnsCreate(),
		g.returnsStatus(),
		g.policyLookup(),
	}
}

func (g *Gateway) Names() []string {
	return append([]string(nil), g.names...)
}

func (g *Gateway) Has(name string) bool {
	_, ok := g.defs[name]
	return ok
}

func (g *Gateway) Specs(names []string) ([]contractx.ToolSpec, error) {
	specs := make([]contractx.ToolSpec, 0, len(names))
	for _, name := range names {
		def, ok := g.defs[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown tool %q", contractx.ErrValidation, name)
		}
		specs = append(specs, contractx.ToolSpec{
			Name:        def.Name(),
			Description: def.Description(),
			Parameters:  def.RequestSchema(),
		})
	}
	return specs, nil
}

// Execute never returns a Go error: failures become error results the model
// can read and react to.
func (g *Gateway) Execute(ctx context.Context, inv contractx.Invocation, call contractx.ToolCall) contractx.ToolResult {
	res := contractx.ToolResult{CallID: call.ID, Tool: call.Name}

	def, ok := g.defs[call.Name]
	if !ok {
		res.Error = fmt.Sprintf("tool %s is not available", call.Name)
		return res
	}

	start := time.Now()
	out, err := def.run(ctx, inv, call.Args)
	logger := log.Ctx(ctx).With().Str("tool", call.Name).Str("call_id", call.ID).Logger()
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("tool execution failed")
		if msg, ok := isUserError(err); ok {
			res.Error = msg
		} else {
			res.Error = fmt.Sprintf("%s failed, try again or answer without it", call.Name)
		}
		return res
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Bool("needs_input", out.NeedsInput).Msg("tool executed")

	res.Result = out.Result
	res.NeedsInput = out.NeedsInput
	res.Data = out.Data
	res.Directives = out.Directives
	return res
}

func (g *Gateway) now() time.Time {
	return g.deps.Now()
}

func scratchPut(inv contractx.Invocation, key string, value any) {
	if inv.Scratch != nil {
		inv.Scratch.Put(key, value)
	}
}

func scratchString(inv contractx.Invocation, key string) string {
	if inv.Scratch == nil {
		return ""
	}
	v, ok := inv.Scratch.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func needsInput(message string) Outcome {
	return Outcome{
		Result:     map[string]any{"needs_input": message},
		NeedsInput: true,
	}
}
