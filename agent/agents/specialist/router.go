package specialist

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Retail-Assistant/agent/prompt"
)

const (
	DefaultConfidenceThreshold = 0.55
	DefaultTieEpsilon          = 0.05
)

const routerUserTemplate = "Conversation summary:\n{summary}\n\nShopper message:\n{message}"

type candidate struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type routerOutput struct {
	Intent       string      `json:"intent"`
	Confidence   float64     `json:"confidence"`
	Alternatives []candidate `json:"alternatives,omitempty"`
}

// Router classifies a shopper message into one intent label.
type Router struct {
	runner    compose.Runnable[map[string]any, routerOutput]
	threshold float64
	epsilon   float64
}

var _ contractx.Classifier = (*Router)(nil)

type RouterOption func(*Router)

func WithThreshold(v float64) RouterOption {
	return func(r *Router) {
		if v > 0 && v <= 1 {
			r.threshold = v
		}
	}
}

func WithTieEpsilon(v float64) RouterOption {
	return func(r *Router) {
		if v >= 0 && v < 1 {
			r.epsilon = v
		}
	}
}

func NewRouter(ctx context.Context, provider contractx.Provider, opts ...RouterOption) (*Router, error) {
	if provider == nil {
		return nil, errors.New("router provider is required")
	}
	system, err := promptx.Raw(promptx.Router)
	if err != nil {
		return nil, err
	}
	runner, err := compileStructuredGraph[routerOutput](ctx, provider, system, routerUserTemplate, "router.classify_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile router graph: %v", contractx.ErrValidation, err)
	}

	r := &Router{
		runner:    runner,
		threshold: DefaultConfidenceThreshold,
		epsilon:   DefaultTieEpsilon,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

func (r *Router) Classify(ctx context.Context, message string, summary string) (contractx.Classification, error) {
	if strings.TrimSpace(message) == "" {
		return contractx.Classification{}, fmt.Errorf("%w: message is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(summary) == "" {
		summary = "none"
	}

	out, err := r.runner.Invoke(ctx, map[string]any{
		"summary": summary,
		"message": message,
	})
	switch {
	case err == nil:
	case errors.Is(err, contractx.ErrProviderUnavailable), errors.Is(err, contractx.ErrProviderContractViolation):
		return contractx.Classification{}, err
	case ctx.Err() != nil:
		return contractx.Classification{}, fmt.Errorf("%w: classify: %v", contractx.ErrProviderUnavailable, ctx.Err())
	default:
		return contractx.Classification{}, fmt.Errorf("%w: router reply is not valid JSON: %v", contractx.ErrProviderContractViolation, err)
	}

	c := r.decide(out)
	if c.Ambiguous {
		log.Ctx(ctx).Debug().
			Err(contractx.ErrIntentAmbiguous).
			Str("label", out.Intent).
			Float64("confidence", out.Confidence).
			Msg("routing to fallback")
	}
	return c, nil
}

// decide applies the unknown-label and confidence rules, then prefers search
// when it clears the threshold and is within epsilon of the top candidate.
func (r *Router) decide(out routerOutput) contractx.Classification {
	top, ok := contractx.ParseIntent(normalizeLabel(out.Intent))
	conf := clamp(out.Confidence)
	if !ok || conf < r.threshold {
		return contractx.Classification{Intent: contractx.IntentFallback, Confidence: conf, Ambiguous: true}
	}
	if top == contractx.IntentSearch {
		return contractx.Classification{Intent: top, Confidence: conf}
	}

	for _, alt := range out.Alternatives {
		in, ok := contractx.ParseIntent(normalizeLabel(alt.Intent))
		if !ok || in != contractx.IntentSearch {
			continue
		}
		if altConf := clamp(alt.Confidence); altConf >= r.threshold && conf-altConf <= r.epsilon+1e-9 {
			return contractx.Classification{Intent: contractx.IntentSearch, Confidence: altConf}
		}
		break
	}
	return contractx.Classification{Intent: top, Confidence: conf}
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
