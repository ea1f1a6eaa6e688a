package tool

import (
	"context"
	"errors"
	"time"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
)

// cartLines maps the cart snapshot to sellable units. A line without a
// sku_id is sold under its product id.
func cartLines(cart []contractx.CartItem) []commerce.LineInput {
	lines := make([]commerce.LineInput, 0, len(cart))
	for _, item := range cart {
		sku := item.SKUID
		if sku == "" {
			sku = item.ProductID
		}
		lines = append(lines, commerce.LineInput{
			SKUID:     sku,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

type CartSummaryRequest struct{}

type CartSummaryResult struct {
	commerce.Totals
	Lines []commerce.LineInput `json:"lines"`
}

func (g *Gateway) cartSummary() Definition {
	return define(CartSummary,
		"Summarize the customer's cart with subtotal, shipping, tax and total before checkout.",
		func(_ context.Context, inv contractx.Invocation, _ CartSummaryRequest) (Outcome, error) {
			if len(inv.Cart) == 0 {
				out := needsInput("the cart is empty; ask the customer to add items first")
				out.Data = map[string]any{"cart_empty": true}
				return out, nil
			}
			lines := cartLines(inv.Cart)
			totals := commerce.ComputeTotals(lines)
			return Outcome{
				Result: CartSummaryResult{Totals: totals, Lines: lines},
				Data: map[string]any{
					"subtotal":              totals.Subtotal,
					"shipping":              totals.Shipping,
					"tax":                   totals.Tax,
					"total":                 totals.Total,
					"awaiting_confirmation": true,
				},
				Directives: []contractx.Directive{contractx.DirectiveConfirmOrder},
			}, nil
		})
}

type OrderPlaceRequest struct {
	Confirm bool `json:"confirm" jsonschema:"description=True only after the customer explicitly confirmed the order"`
}

type OrderPlaced struct {
	OrderNumber string  `json:"order_number"`
	Status      string  `json:"status"`
	Total       float64 `json:"total"`
	Items       int     `json:"items"`
}

func (g *Gateway) orderPlace() Definition {
	return define(OrderPlace,
		"Place the order for the items in the cart once the customer has confirmed.",
		func(ctx context.Context, inv contractx.Invocation, req OrderPlaceRequest) (Outcome, error) {
			if len(inv.Cart) == 0 {
				return needsInput("the cart is empty; nothing to order"), nil
			}
			if inv.CustomerID == "" {
				return needsInput("the customer must sign in to complete the purchase"), nil
			}
			if !req.Confirm {
				out := needsInput("ask the customer to confirm the order total before placing it")
				out.Directives = []contractx.Directive{contractx.DirectiveConfirmOrder}
				return out, nil
			}

			order, err := g.deps.Commerce.CreateOrder(ctx, commerce.NewOrder{
				CustomerID: inv.CustomerID,
				Lines:      cartLines(inv.Cart),
			})
			switch {
			case errors.Is(err, commerce.ErrCustomerRequired):
				return needsInput("the customer account was not found; ask them to sign in"), nil
			case errors.Is(err, commerce.ErrEmptyCart):
				return needsInput("the cart is empty; nothing to order"), nil
			case err != nil:
				return Outcome{}, err
			}

			items := 0
			for _, l := range order.Lines {
				items += l.Quantity
			}
			return Outcome{
				Result: OrderPlaced{OrderNumber: order.Number, Status: order.Status, Total: order.Total, Items: items},
				Data: map[string]any{
					"order_placed": true,
					"order_number": order.Number,
					"total":        order.Total,
				},
				Directives: []contractx.Directive{contractx.DirectiveClearCart},
			}, nil
		})
}

type OrderStatusRequest struct {
	OrderNumber string `json:"order_number,omitempty" jsonschema:"description=Order number like ORD-1A2B3C4D. Leave empty for the customer's latest orders"`
}

type OrderView struct {
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	OrderDate   time.Time `json:"order_date"`
	Total       float64   `json:"total"`
	Items       int       `json:"items"`
}

func orderView(o commerce.Order) OrderView {
	items := 0
	for _, l := range o.Lines {
		items += l.Quantity
	}
	return OrderView{OrderNumber: o.Number, Status: o.Status, OrderDate: o.OrderedAt, Total: o.Total, Items: items}
}

func (g *Gateway) orderStatus() Definition {
	return define(OrderStatus,
		"Look up an order by number or list the signed-in customer's recent orders.",
		func(ctx context.Context, inv contractx.Invocation, req OrderStatusRequest) (Outcome, error) {
			if req.OrderNumber != "" {
				o, err := g.deps.Commerce.Order(ctx, req.OrderNumber)
				if errors.Is(err, commerce.ErrNotFound) || (err == nil && inv.CustomerID != "" && o.CustomerID != inv.CustomerID) {
					return Outcome{}, inputErrorf("order %s was not found", req.OrderNumber)
				}
				if err != nil {
					return Outcome{}, err
				}
				view := orderView(o)
				return Outcome{Result: map[string]any{"order": view}, Data: map[string]any{"order": view}}, nil
			}
			if inv.CustomerID == "" {
				return needsInput("ask for the order number or for the customer to sign in"), nil
			}
			orders, err := g.deps.Commerce.ListOrders(ctx, inv.CustomerID, 5)
			if err != nil {
				return Outcome{}, err
			}
			views := make([]OrderView, 0, len(orders))
			for _, o := range orders {
				views = append(views, orderView(o))
			}
			return Outcome{Result: map[string]any{"orders": views, "count": len(views)}, Data: map[string]any{"orders": views}}, nil
		})
}
