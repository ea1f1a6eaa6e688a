package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

func TestRenderSubstitutesContext(t *testing.T) {
	t.Parallel()

	out, err := Render(context.Background(), "checkout", Vars{
		CustomerID:  "C-1001",
		CartSummary: "2 items, $59.00",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Shopper: C-1001", "Cart: 2 items, $59.00", "Page: none"} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered prompt missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "{") {
		t.Fatalf("unrendered placeholder left in prompt:\n%s", out)
	}
}

func TestRenderGuestDefaults(t *testing.T) {
	t.Parallel()

	out, err := Render(context.Background(), "stylist", Vars{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "Shopper: guest") || !strings.Contains(out, "Style profile: none") {
		t.Fatalf("unexpected guest prompt:\n%s", out)
	}
}

func TestRawMissingTemplate(t *testing.T) {
	t.Parallel()

	if _, err := Raw("planner"); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("Raw() error = %v, want ErrPromptMissing", err)
	}
}

func TestKeysIncludeRouterAndPersonas(t *testing.T) {
	t.Parallel()

	keys := strings.Join(Keys(), ",")
	for _, want := range []string{Router, "stylist", "catalog-search", "lookbook", "checkout", "returns", "recommender", "concierge"} {
		if !strings.Contains(keys, want) {
			t.Fatalf("Keys() = %s, missing %s", keys, want)
		}
	}
}
