package commerce

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("commerce: not found")
	ErrEmptyCart        = errors.New("commerce: cart is empty")
	ErrCustomerRequired = errors.New("commerce: customer required")
	ErrNotEligible      = errors.New("commerce: order outside return window")
)

type ProductQuery struct {
	Types  []string
	Gender string
	Color  string
	Limit  int
}

type NewOrder struct {
	CustomerID    string
	Lines         []LineInput
	PaymentMethod string
}

type NewReturn struct {
	OrderNumber string
	CustomerID  string
	Reason      string
	Notes       string
}

type Service interface {
	Products(ctx context.Context, q ProductQuery) ([]Product, error)
	Product(ctx context.Context, id string) (Product, error)
	Reviews(ctx context.Context, productID string, limit int) ([]Review, error)
	Trending(ctx context.Context, limit int) ([]Product, error)

	Customer(ctx context.Context, id string) (Customer, error)
	StyleProfile(ctx context.Context, customerID string) (StyleProfile, error)
	StyleProfiles(ctx context.Context, limit int) ([]StyleProfile, error)

	Order(ctx context.Context, number string) (Order, error)
	LatestOrder(ctx context.Context, customerID string) (Order, error)
	ListOrders(ctx context.Context, customerID string, limit int) ([]Order, error)
	CreateOrder(ctx context.Context, in NewOrder) (Order, error)

	CreateReturn(ctx context.Context, in NewReturn) (Return, error)
	Return(ctx context.Context, id int64) (Return, error)
	ListReturns(ctx context.Context, customerID string, limit int) ([]Return, error)
}

// NewOrderNumber returns an ORD- prefixed number with eight hex digits.
func NewOrderNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(hex[:8])
}

func buildOrder(in NewOrder) (Order, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return Order{}, ErrCustomerRequired
	}
	if len(in.Lines) == 0 {
		return Order{}, ErrEmptyCart
	}
	totals := ComputeTotals(in.Lines)
	payment := in.PaymentMethod
	if payment == "" {
		payment = DefaultPaymentMethod
	}
	o := Order{
		Number:        NewOrderNumber(),
		CustomerID:    in.CustomerID,
		Status:        OrderConfirmed,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Shipping:      totals.Shipping,
		Total:         totals.Total,
		Currency:      DefaultCurrency,
		PaymentMethod: payment,
	}
	for _, l := range in.Lines {
		sku := l.SKUID
		if sku == "" {
			sku = l.ProductID
		}
		o.Lines = append(o.Lines, OrderLine{
			SKUID:     sku,
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.quantity(),
			UnitPrice: l.UnitPrice,
			LineTotal: round2(l.UnitPrice * float64(l.quantity())),
		})
	}
	return o, nil
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
