package specialist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

type toolSet map[string]struct{}

func (s toolSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func allTools() toolSet {
	names := []string{
		"catalog_search", "catalog_similar", "reviews_search", "profile_style",
		"lookbook_compose", "cart_summary", "order_place", "order_status",
		"returns_eligibility", "returns_create", "returns_status", "policy_lookup",
	}
	s := toolSet{}
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

type fakeProvider struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []contractx.CompletionRequest
}

func (f *fakeProvider) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return contractx.Completion{}, f.err
	}
	return contractx.Completion{Text: f.text}, nil
}

func TestLoadRegistryServesEveryIntent(t *testing.T) {
	t.Parallel()

	r, err := LoadRegistry(allTools())
	require.NoError(t, err)
	assert.Len(t, r.Entries(), 7)

	want := map[contractx.Intent]contractx.AgentName{
		contractx.IntentStyle:     "stylist",
		contractx.IntentSearch:    "catalog-search",
		contractx.IntentLookbook:  "lookbook",
		contractx.IntentCheckout:  "checkout",
		contractx.IntentReturns:   "returns",
		contractx.IntentRecommend: "recommender",
		contractx.IntentFallback:  contractx.AgentFallback,
	}
	for in, name := range want {
		e, err := r.ForIntent(in)
		require.NoError(t, err)
		assert.Equal(t, name, e.Name, "intent %s", in)
	}

	checkout, ok := r.Lookup("checkout")
	require.True(t, ok)
	assert.True(t, checkout.Allows("order_place"))
	assert.False(t, checkout.Allows("returns_create"))
}

func TestNewRegistryRejectsInvalidEntries(t *testing.T) {
	t.Parallel()

	base, err := Decode(agentsTOML)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]Entry) []Entry
		want   error
	}{
		{
			name:   "unserved intent",
			mutate: func(es []Entry) []Entry { return es[:len(es)-1] },
			want:   contractx.ErrValidation,
		},
		{
			name: "unknown tool",
			mutate: func(es []Entry) []Entry {
				es[0].Tools = append(es[0].Tools, "inventory_query")
				return es
			},
			want: contractx.ErrValidation,
		},
		{
			name: "intent served twice",
			mutate: func(es []Entry) []Entry {
				es[0].Intents = append(es[0].Intents, contractx.IntentSearch)
				return es
			},
			want: contractx.ErrValidation,
		},
		{
			name: "missing persona",
			mutate: func(es []Entry) []Entry {
				es[0].Prompt = "planner"
				return es
			},
			want: contractx.ErrPromptMissing,
		},
		{
			name: "reserved name",
			mutate: func(es []Entry) []Entry {
				es[0].Name = contractx.AgentOrchestrator
				return es
			},
			want: contractx.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			entries := make([]Entry, len(base))
			for i, e := range base {
				e.Tools = append([]string(nil), e.Tools...)
				e.Intents = append([]contractx.Intent(nil), e.Intents...)
				entries[i] = e
			}
			_, err := NewRegistry(tt.mutate(entries), allTools())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRouterClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		reply     string
		want      contractx.Intent
		ambiguous bool
	}{
		{"search", `{"intent":"search","confidence":0.91}`, contractx.IntentSearch, false},
		{"fenced json", "```json\n{\"intent\":\"returns\",\"confidence\":0.8}\n```", contractx.IntentReturns, false},
		{"below threshold", `{"intent":"style","confidence":0.4}`, contractx.IntentFallback, true},
		{"unknown label", `{"intent":"weather","confidence":0.95}`, contractx.IntentFallback, true},
		{"tie prefers search", `{"intent":"style","confidence":0.62,"alternatives":[{"intent":"search","confidence":0.6}]}`, contractx.IntentSearch, false},
		{"tie below threshold keeps label", `{"intent":"style","confidence":0.56,"alternatives":[{"intent":"search","confidence":0.52}]}`, contractx.IntentStyle, false},
		{"clear winner keeps label", `{"intent":"style","confidence":0.8,"alternatives":[{"intent":"search","confidence":0.6}]}`, contractx.IntentStyle, false},
		{"label is normalized", `{"intent":" Checkout ","confidence":0.7}`, contractx.IntentCheckout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &fakeProvider{text: tt.reply}
			r, err := NewRouter(context.Background(), p)
			require.NoError(t, err)

			got, err := r.Classify(context.Background(), "show me a blue dress", "cart_items: 0")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Intent)
			assert.Equal(t, tt.ambiguous, got.Ambiguous)
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 1.0)
		})
	}
}

func TestRouterRequestCarriesPromptAndSummary(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{text: `{"intent":"search","confidence":0.9}`}
	r, err := NewRouter(context.Background(), p)
	require.NoError(t, err)

	_, err = r.Classify(context.Background(), "blue dress under $60", "customer: guest")
	require.NoError(t, err)

	require.Len(t, p.calls, 1)
	req := p.calls[0]
	assert.Contains(t, req.SystemPrompt, `{"intent": "<label>"`)
	assert.Empty(t, req.Tools)
	require.Len(t, req.Window, 1)
	assert.Contains(t, req.Window[0].Content, "blue dress under $60")
	assert.Contains(t, req.Window[0].Content, "customer: guest")
}

func TestRouterMalformedReplyIsContractViolation(t *testing.T) {
	t.Parallel()

	r, err := NewRouter(context.Background(), &fakeProvider{text: "search, probably"})
	require.NoError(t, err)

	_, err = r.Classify(context.Background(), "hi", "")
	assert.ErrorIs(t, err, contractx.ErrProviderContractViolation)
}

func TestRouterProviderFailure(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{err: errors.Join(contractx.ErrProviderUnavailable, context.DeadlineExceeded)}
	r, err := NewRouter(context.Background(), p)
	require.NoError(t, err)

	_, err = r.Classify(context.Background(), "hi", "")
	require.Error(t, err)
	assert.True(t,
		errors.Is(err, contractx.ErrProviderUnavailable) || errors.Is(err, contractx.ErrProviderContractViolation),
		"unexpected error %v", err)
}

func TestRouterWithOptions(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{text: `{"intent":"style","confidence":0.5}`}
	r, err := NewRouter(context.Background(), p, WithThreshold(0.3), WithTieEpsilon(0))
	require.NoError(t, err)

	got, err := r.Classify(context.Background(), "what goes with navy", "")
	require.NoError(t, err)
	assert.Equal(t, contractx.IntentStyle, got.Intent)
}
