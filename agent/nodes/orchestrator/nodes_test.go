package orchestratornode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Retail-Assistant/agent/state"
)

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	valid := [][2]Phase{
		{PhaseReceived, PhaseClassifying},
		{PhaseClassifying, PhaseDispatched},
		{PhaseDispatched, PhaseToolLoop},
		{PhaseToolLoop, PhaseResponding},
		{PhaseResponding, PhaseDone},
		{PhaseClassifying, PhaseDegraded},
		{PhaseToolLoop, PhaseDegraded},
	}
	for _, tr := range valid {
		if !CanTransition(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be allowed", tr[0], tr[1])
		}
	}

	invalid := [][2]Phase{
		{PhaseReceived, PhaseToolLoop},
		{PhaseDone, PhaseDegraded},
		{PhaseDegraded, PhaseResponding},
		{PhaseToolLoop, PhaseClassifying},
	}
	for _, tr := range invalid {
		if CanTransition(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be rejected", tr[0], tr[1])
		}
	}

	if !PhaseDone.Terminal() || !PhaseDegraded.Terminal() || PhaseToolLoop.Terminal() {
		t.Fatal("unexpected terminal phases")
	}

	s := &GraphState{Phase: PhaseReceived}
	if err := s.advance(PhaseResponding); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("advance() error = %v, want ErrValidation", err)
	}
	if s.Phase != PhaseReceived {
		t.Fatalf("phase changed on invalid transition: %s", s.Phase)
	}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC) }

	if _, err := ValidateRequest(GraphInput{ConversationID: "c1", Message: "   "}, now); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("empty message error = %v", err)
	}
	if _, err := ValidateRequest(GraphInput{Message: "hi"}, now); !errors.Is(err, ErrInvalidConversation) {
		t.Fatalf("missing conversation error = %v", err)
	}
	long := GraphInput{ConversationID: "c1", Message: strings.Repeat("a", MaxMessageLength+1)}
	if _, err := ValidateRequest(long, now); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("long message error = %v", err)
	}
	badCart := GraphInput{ConversationID: "c1", Message: "buy", CartItems: []contractx.CartItem{{ProductID: "P-1", Quantity: -1}}}
	if _, err := ValidateRequest(badCart, now); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("bad cart error = %v", err)
	}

	st, err := ValidateRequest(GraphInput{ConversationID: " c1 ", CustomerID: " C-1001 ", Message: " hello "}, now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if st.Req.ConversationID != "c1" || st.Req.CustomerID != "C-1001" || st.Req.Message != "hello" || st.Phase != PhaseReceived {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestSummaryUsesTurnsBeforeCurrentMessage(t *testing.T) {
	t.Parallel()

	c := statex.NewContext("c1", 10, time.Now())
	c.CustomerID = "C-1001"
	c.Cart = []contractx.CartItem{{ProductID: "P-1001"}}
	c.LastAgent = "catalog-search"
	c.Window = []statex.Turn{
		{Role: statex.TurnCustomer, Text: "first question"},
		{Role: statex.TurnCustomer, Text: "blue dress"},
		{Role: statex.TurnAgent, Agent: "catalog-search", Text: "Here are 3 dresses. Want the linen one?"},
		{Role: statex.TurnCustomer, Text: "yes"},
	}

	got := Summary(c)
	for _, want := range []string{
		"cart_items: 1",
		"customer: known",
		"last_agent: catalog-search",
		"customer: blue dress",
		"agent(catalog-search): Here are 3 dresses.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Summary() missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "first question") || strings.HasSuffix(got, "yes") {
		t.Fatalf("Summary() includes the wrong turns:\n%s", got)
	}
}

func TestCartSummary(t *testing.T) {
	t.Parallel()

	if CartSummary(nil) != "" {
		t.Fatal("empty cart should render empty")
	}
	got := CartSummary([]contractx.CartItem{
		{ProductID: "P-1001", Name: "Blue Linen Midi Dress", UnitPrice: 59, Quantity: 1},
		{ProductID: "P-1004", UnitPrice: 19, Quantity: 2},
	})
	want := "3 items (Blue Linen Midi Dress x1, P-1004 x2), subtotal $97.00"
	if got != want {
		t.Fatalf("CartSummary() = %q, want %q", got, want)
	}
}

func TestRecordFoldsResults(t *testing.T) {
	t.Parallel()

	s := &GraphState{}
	s.record(contractx.ToolResult{Tool: "cart_summary", Directives: []contractx.Directive{contractx.DirectiveConfirmOrder}, Data: map[string]any{"total": 51.04}})
	s.record(contractx.ToolResult{Tool: "order_place", NeedsInput: true, Directives: []contractx.Directive{contractx.DirectiveConfirmOrder}})
	s.record(contractx.ToolResult{Tool: "order_status", Error: "order ORD-1 was not found"})

	if len(s.Directives) != 1 || s.Directives[0] != contractx.DirectiveConfirmOrder {
		t.Fatalf("directives = %v", s.Directives)
	}
	if !s.NeedsInput || s.Data["total"] != 51.04 {
		t.Fatalf("state = %+v", s)
	}
	want := []string{ActionCompleted, ActionNeedsInput, ActionFailed}
	for i, a := range s.Actions {
		if a.Status != want[i] {
			t.Fatalf("action %d status = %s, want %s", i, a.Status, want[i])
		}
	}
}

func TestProviderErrMarksDeadline(t *testing.T) {
	t.Parallel()

	if err := providerErr(context.DeadlineExceeded); !errors.Is(err, contractx.ErrProviderUnavailable) {
		t.Fatalf("deadline error = %v, want ErrProviderUnavailable", err)
	}
	other := errors.New("bad json")
	if err := providerErr(other); err != other {
		t.Fatalf("providerErr() = %v, want unchanged", err)
	}
}
