package tool

import (
	"context"
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
)

func normalizeReason(reason string) string {
	for _, r := range commerce.ReturnReasons {
		if strings.EqualFold(strings.TrimSpace(reason), r) {
			return r
		}
	}
	return commerce.MatchReturnReason(reason)
}

// resolveOrder finds the order a returns request is about. ok is false when
// neither an order number nor a customer is known.
func (g *Gateway) resolveOrder(ctx context.Context, inv contractx.Invocation, number string) (commerce.Order, bool, error) {
	if number == "" {
		number = scratchString(inv, scratchReturnOrder)
	}
	if number != "" {
		o, err := g.deps.Commerce.Order(ctx, number)
		if errors.Is(err, commerce.ErrNotFound) || (err == nil && inv.CustomerID != "" && o.CustomerID != inv.CustomerID) {
			return commerce.Order{}, true, inputErrorf("order %s was not found; check the order number", number)
		}
		return o, true, err
	}
	if inv.CustomerID == "" {
		return commerce.Order{}, false, nil
	}
	o, err := g.deps.Commerce.LatestOrder(ctx, inv.CustomerID)
	if errors.Is(err, commerce.ErrNotFound) {
		return commerce.Order{}, true, inputErrorf("the customer has no orders to return")
	}
	return o, true, err
}

type EligibilityRequest struct {
	OrderNumber string `json:"order_number,omitempty" jsonschema:"description=Order to return. Leave empty to use the customer's latest order"`
	Reason      string `json:"reason,omitempty" jsonschema:"description=Why the customer wants to return the item"`
}

type EligibilityResult struct {
	OrderNumber    string    `json:"order_number"`
	OrderDate      time.Time `json:"order_date"`
	DaysSinceOrder int       `json:"days_since_order"`
	Eligible       bool      `json:"eligible"`
	ReturnReason   string    `json:"return_reason"`
	RefundEstimate float64   `json:"refund_estimate,omitempty"`
}

func (g *Gateway) returnsEligibility() Definition {
	return define(ReturnsEligibility,
		"Check whether an order can still be returned under the 30-day policy.",
		func(ctx context.Context, inv contractx.Invocation, req EligibilityRequest) (Outcome, error) {
			o, known, err := g.resolveOrder(ctx, inv, req.OrderNumber)
			if !known {
				return needsInput("ask for the order number or for the customer to sign in"), nil
			}
			if err != nil {
				return Outcome{}, err
			}

			eligible, days := commerce.ReturnEligibility(o, g.now())
			result := EligibilityResult{
				OrderNumber:    o.Number,
				OrderDate:      o.OrderedAt,
				DaysSinceOrder: days,
				Eligible:       eligible,
				ReturnReason:   normalizeReason(req.Reason),
			}
			if eligible {
				result.RefundEstimate = o.Subtotal + o.Tax
			}
			scratchPut(inv, scratchReturnOrder, o.Number)

			out := Outcome{
				Result: result,
				Data: map[string]any{
					"order_number":          o.Number,
					"eligible":              eligible,
					"return_reason":         result.ReturnReason,
					"awaiting_confirmation": eligible,
				},
			}
			if eligible {
				out.Directives = []contractx.Directive{contractx.DirectiveConfirmReturn}
			}
			return out, nil
		})
}

type ReturnCreateRequest struct {
	OrderNumber string `json:"order_number,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Confirm     bool   `json:"confirm" jsonschema:"description=True only after the customer explicitly confirmed the return"`
}

type ReturnCreated struct {
	ReturnID     int64   `json:"return_id"`
	OrderNumber  string  `json:"order_number"`
	Status       string  `json:"status"`
	Reason       string  `json:"reason"`
	RefundAmount float64 `json:"refund_amount"`
}

func (g *Gateway) returnsCreate() Definition {
	return define(ReturnsCreate,
		"Submit a return request for an eligible order after the customer confirms.",
		func(ctx context.Context, inv contractx.Invocation, req ReturnCreateRequest) (Outcome, error) {
			o, known, err := g.resolveOrder(ctx, inv, req.OrderNumber)
			if !known {
				return needsInput("ask for the order number or for the customer to sign in"), nil
			}
			if err != nil {
				return Outcome{}, err
			}
			if !req.Confirm {
				out := needsInput("ask the customer to confirm the return of order " + o.Number)
				out.Directives = []contractx.Directive{contractx.DirectiveConfirmReturn}
				return out, nil
			}

			r, err := g.deps.Commerce.CreateReturn(ctx, commerce.NewReturn{
				OrderNumber: o.Number,
				CustomerID:  inv.CustomerID,
				Reason:      normalizeReason(req.Reason),
			})
			switch {
			case errors.Is(err, commerce.ErrNotEligible):
				return Outcome{}, inputErrorf("order %s is outside the 30-day return window", o.Number)
			case errors.Is(err, commerce.ErrNotFound):
				return Outcome{}, inputErrorf("order %s was not found", o.Number)
			case err != nil:
				return Outcome{}, err
			}

			return Outcome{
				Result: ReturnCreated{
					ReturnID:     r.ID,
					OrderNumber:  r.OrderNumber,
					Status:       r.Status,
					Reason:       r.Reason,
					RefundAmount: r.RefundAmount,
				},
				Data: map[string]any{
					"return_created": true,
					"return_id":      r.ID,
					"order_number":   r.OrderNumber,
				},
				Directives: []contractx.Directive{contractx.DirectiveOpenReturnsFlow},
			}, nil
		})
}

type ReturnStatusRequest struct {
	ReturnID int64 `json:"return_id,omitempty" jsonschema:"minimum=1"`
}

type ReturnView struct {
	ReturnID     int64     `json:"return_id"`
	OrderNumber  string    `json:"order_number"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason"`
	RequestedAt  time.Time `json:"requested_date"`
	RefundAmount float64   `json:"refund_amount"`
}

func returnView(r commerce.Return) ReturnView {
	return ReturnView{
		ReturnID:     r.ID,
		OrderNumber:  r.OrderNumber,
		Status:       r.Status,
		Reason:       r.Reason,
		RequestedAt:  r.RequestedAt,
		RefundAmount: r.RefundAmount,
	}
}

func (g *Gateway) returnsStatus() Definition {
	return define(ReturnsStatus,
		"Check the status of a return request by id or list the customer's recent returns.",
		func(ctx context.Context, inv contractx.Invocation, req ReturnStatusRequest) (Outcome, error) {
			if req.ReturnID > 0 {
				r, err := g.deps.Commerce.Return(ctx, req.ReturnID)
				if errors.Is(err, commerce.ErrNotFound) || (err == nil && inv.CustomerID != "" && r.CustomerID != inv.CustomerID) {
					return Outcome{}, inputErrorf("return %d was not found", req.ReturnID)
				}
				if err != nil {
					return Outcome{}, err
				}
				view := returnView(r)
				return Outcome{Result: map[string]any{"return": view}, Data: map[string]any{"return": view}}, nil
			}
			if inv.CustomerID == "" {
				return needsInput("ask for the return id or for the customer to sign in"), nil
			}
			list, err := g.deps.Commerce.ListReturns(ctx, inv.CustomerID, 5)
			if err != nil {
				return Outcome{}, err
			}
			views := make([]ReturnView, 0, len(list))
			for _, r := range list {
				views = append(views, returnView(r))
			}
			return Outcome{Result: map[string]any{"returns": views, "count": len(views)}, Data: map[string]any{"returns": views}}, nil
		})
}

type PolicyRequest struct {
	Topic string `json:"topic" jsonschema:"enum=returns,enum=shipping,enum=payment"`
}

func (g *Gateway) policyLookup() Definition {
	return define(PolicyLookup,
		"Look up store policy text for returns, shipping or payment.",
		func(_ context.Context, _ contractx.Invocation, req PolicyRequest) (Outcome, error) {
			var text string
			switch strings.ToLower(strings.TrimSpace(req.Topic)) {
			case "returns", "return":
				text = commerce.ReturnPolicyText
			case "shipping", "delivery":
				text = commerce.ShippingPolicyText
			case "payment", "payments":
				text = commerce.PaymentPolicyText
			default:
				return Outcome{}, inputErrorf("unknown policy topic %q; use returns, shipping or payment", req.Topic)
			}
			return Outcome{Result: map[string]any{"topic": req.Topic, "policy": text}}, nil
		})
}
