package commerce

import (
	"strings"
	"time"
)

const (
	FreeShippingThreshold = 50.00
	FlatShipping          = 10.00
	TaxRate               = 0.08
	ReturnWindow          = 30 * 24 * time.Hour
	DefaultCurrency       = "USD"
	DefaultPaymentMethod  = "Credit Card"
)

var ReturnReasons = []string{
	"Size doesn't fit",
	"Color not as expected",
	"Quality issues",
	"Changed mind",
	"Found better price",
	"Item damaged",
	"Wrong item received",
}

const DefaultReturnReason = "Changed mind"

const (
	ReturnPolicyText = `Returns are accepted within 30 days of purchase.
Items must be unworn, unwashed and in original condition with tags attached.
Return shipping is free for orders over $50.
Refunds are processed within 5-7 business days after we receive the item.
Original shipping costs are non-refundable. Sale items are final sale.`

	ShippingPolicyText = `Standard shipping (5-7 business days): $10.00, free on orders of $50 or more.
Express shipping (2-3 business days): $19.99.
Overnight shipping (next business day): $29.99.
Orders are processed within 1-2 business days and ship with a tracking number.`

	PaymentPolicyText = `We accept Visa, Mastercard, American Express, Discover, PayPal, Apple Pay and Google Pay.
Payments are processed securely and full card details are never stored.`
)

// LineInput is one cart line being priced or ordered.
type LineInput struct {
	SKUID     string  `json:"sku_id,omitempty"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	UnitPrice float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

func (l LineInput) quantity() int {
	if l.Quantity <= 0 {
		return 1
	}
	return l.Quantity
}

type Totals struct {
	Items    int     `json:"items"`
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

func ComputeTotals(lines []LineInput) Totals {
	var t Totals
	for _, l := range lines {
		t.Items += l.quantity()
		t.Subtotal += l.UnitPrice * float64(l.quantity())
	}
	t.Subtotal = round2(t.Subtotal)
	if t.Subtotal < FreeShippingThreshold {
		t.Shipping = FlatShipping
	}
	t.Tax = round2(t.Subtotal * TaxRate)
	t.Total = round2(t.Subtotal + t.Shipping + t.Tax)
	return t
}

// ReturnEligibility reports whether the order is inside the return window
// and how many whole days have passed since it was placed.
func ReturnEligibility(o Order, now time.Time) (bool, int) {
	age := now.Sub(o.OrderedAt)
	days := int(age / (24 * time.Hour))
	return age <= ReturnWindow, days
}

// MatchReturnReason picks the first known reason mentioned in text.
func MatchReturnReason(text string) string {
	lower := strings.ToLower(text)
	for _, r := range ReturnReasons {
		if strings.Contains(lower, strings.ToLower(r)) {
			return r
		}
	}
	return DefaultReturnReason
}
