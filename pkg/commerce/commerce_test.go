package commerce

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

func newDemo(t *testing.T) *MemoryService {
	t.Helper()
	seed, err := LoadSeed()
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	s := NewMemoryService(WithClock(func() time.Time { return fixedNow }))
	seed.Apply(s, fixedNow)
	return s
}

func TestComputeTotals(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		lines []LineInput
		want  Totals
	}{
		{
			name:  "below free shipping",
			lines: []LineInput{{ProductID: "a", UnitPrice: 15, Quantity: 3}},
			want:  Totals{Items: 3, Subtotal: 45, Shipping: 10, Tax: 3.6, Total: 58.6},
		},
		{
			name:  "free shipping",
			lines: []LineInput{{ProductID: "a", UnitPrice: 59}, {ProductID: "b", UnitPrice: 49, Quantity: 1}},
			want:  Totals{Items: 2, Subtotal: 108, Shipping: 0, Tax: 8.64, Total: 116.64},
		},
		{
			name:  "exactly at threshold",
			lines: []LineInput{{ProductID: "a", UnitPrice: 25, Quantity: 2}},
			want:  Totals{Items: 2, Subtotal: 50, Shipping: 0, Tax: 4, Total: 54},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ComputeTotals(tc.lines); got != tc.want {
				t.Fatalf("ComputeTotals() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	s := newDemo(t)
	ctx := context.Background()

	if _, err := s.CreateOrder(ctx, NewOrder{CustomerID: "C-1003"}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("empty cart error = %v, want ErrEmptyCart", err)
	}
	lines := []LineInput{{ProductID: "P-1004", Name: "White Cotton Tee", UnitPrice: 19, Quantity: 2}}
	if _, err := s.CreateOrder(ctx, NewOrder{Lines: lines}); !errors.Is(err, ErrCustomerRequired) {
		t.Fatalf("guest error = %v, want ErrCustomerRequired", err)
	}
	if _, err := s.CreateOrder(ctx, NewOrder{CustomerID: "C-404", Lines: lines}); !errors.Is(err, ErrCustomerRequired) {
		t.Fatalf("unknown customer error = %v, want ErrCustomerRequired", err)
	}

	o, err := s.CreateOrder(ctx, NewOrder{CustomerID: "C-1003", Lines: lines})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if !regexp.MustCompile(`^ORD-[0-9A-F]{8}$`).MatchString(o.Number) {
		t.Fatalf("order number = %q", o.Number)
	}
	if o.Status != OrderConfirmed || o.Total != 51.04 || o.Lines[0].SKUID != "P-1004" {
		t.Fatalf("order = %+v", o)
	}

	latest, err := s.LatestOrder(ctx, "C-1003")
	if err != nil || latest.Number != o.Number {
		t.Fatalf("LatestOrder() = %+v, %v", latest, err)
	}
}

func TestLatestOrderPrefersNewest(t *testing.T) {
	t.Parallel()

	s := newDemo(t)
	o, err := s.LatestOrder(context.Background(), "C-1001")
	if err != nil {
		t.Fatalf("LatestOrder() error = %v", err)
	}
	if o.Number != "ORD-5A1C9E02" {
		t.Fatalf("latest = %s, want ORD-5A1C9E02", o.Number)
	}
	if _, err := s.LatestOrder(context.Background(), "C-1003"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no orders error = %v, want ErrNotFound", err)
	}
}

func TestCreateReturnWindow(t *testing.T) {
	t.Parallel()

	s := newDemo(t)
	ctx := context.Background()

	r, err := s.CreateReturn(ctx, NewReturn{OrderNumber: "ORD-5A1C9E02", CustomerID: "C-1001", Reason: "Size doesn't fit"})
	if err != nil {
		t.Fatalf("CreateReturn() error = %v", err)
	}
	if r.Status != ReturnPending || r.OrderNumber != "ORD-5A1C9E02" || r.ID == 0 {
		t.Fatalf("return = %+v", r)
	}

	if _, err := s.CreateReturn(ctx, NewReturn{OrderNumber: "ORD-77B3D410", CustomerID: "C-1001"}); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("old order error = %v, want ErrNotEligible", err)
	}
	if _, err := s.CreateReturn(ctx, NewReturn{OrderNumber: "ORD-5A1C9E02", CustomerID: "C-1002"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign order error = %v, want ErrNotFound", err)
	}

	list, err := s.ListReturns(ctx, "C-1001", 5)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListReturns() = %+v, %v", list, err)
	}
}

func TestReturnEligibility(t *testing.T) {
	t.Parallel()

	o := Order{OrderedAt: fixedNow.Add(-30 * 24 * time.Hour)}
	if ok, days := ReturnEligibility(o, fixedNow); !ok || days != 30 {
		t.Fatalf("day 30 = %v/%d, want eligible", ok, days)
	}
	o.OrderedAt = o.OrderedAt.Add(-time.Hour)
	if ok, _ := ReturnEligibility(o, fixedNow); ok {
		t.Fatal("order past the window reported eligible")
	}
}

func TestMatchReturnReason(t *testing.T) {
	t.Parallel()

	if got := MatchReturnReason("the item damaged in transit"); got != "Item damaged" {
		t.Fatalf("MatchReturnReason() = %q", got)
	}
	if got := MatchReturnReason("just because"); got != DefaultReturnReason {
		t.Fatalf("MatchReturnReason() = %q, want default", got)
	}
}

func TestTrendingRanksBySales(t *testing.T) {
	t.Parallel()

	s := newDemo(t)
	top, err := s.Trending(context.Background(), 1)
	if err != nil {
		t.Fatalf("Trending() error = %v", err)
	}
	if len(top) != 1 || top[0].ID != "P-1016" {
		t.Fatalf("Trending() = %+v, want P-1016 first", top)
	}
}

func TestProductsFilterByType(t *testing.T) {
	t.Parallel()

	s := newDemo(t)
	shoes, err := s.Products(context.Background(), ProductQuery{Types: []string{"shoes"}})
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	if len(shoes) != 4 {
		t.Fatalf("len(shoes) = %d, want 4", len(shoes))
	}
	for _, p := range shoes {
		if p.Type != "Shoes" {
			t.Fatalf("unexpected product %+v", p)
		}
	}
}
