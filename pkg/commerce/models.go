// Package commerce is the order, return and catalog store behind the retail
// tools. The assistant core only sees the Service interface.
package commerce

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

const (
	OrderConfirmed = "CONFIRMED"
	ReturnPending  = "PENDING"
)

type Product struct {
	bun.BaseModel `bun:"table:retail.product,alias:p"`

	ID          string    `bun:"product_id,pk" json:"product_id"`
	Name        string    `bun:"product_name,notnull" json:"product_name"`
	Description string    `bun:"product_description" json:"product_description,omitempty"`
	Brand       string    `bun:"brand_name" json:"brand_name,omitempty"`
	Type        string    `bun:"product_type" json:"product_type"`
	Gender      string    `bun:"gender" json:"gender,omitempty"`
	Color       string    `bun:"color" json:"color,omitempty"`
	Price       float64   `bun:"price" json:"price"`
	Status      string    `bun:"status" json:"status,omitempty"`
	UpdatedAt   time.Time `bun:"updated_at" json:"updated_at"`
}

type Review struct {
	bun.BaseModel `bun:"table:retail.review,alias:r"`

	ID         string    `bun:"review_id,pk" json:"review_id"`
	ProductID  string    `bun:"product_id,notnull" json:"product_id"`
	CustomerID string    `bun:"customer_id" json:"customer_id,omitempty"`
	Rating     int       `bun:"rating" json:"rating"`
	Title      string    `bun:"review_title" json:"review_title,omitempty"`
	Text       string    `bun:"review_text" json:"review_text,omitempty"`
	UpdatedAt  time.Time `bun:"updated_at" json:"updated_at"`
}

type Customer struct {
	bun.BaseModel `bun:"table:retail.customer,alias:c"`

	ID        string `bun:"customer_id,pk" json:"customer_id"`
	Email     string `bun:"email,unique" json:"email"`
	FirstName string `bun:"first_name" json:"first_name,omitempty"`
	LastName  string `bun:"last_name" json:"last_name,omitempty"`
}

type StyleProfile struct {
	bun.BaseModel `bun:"table:retail.style_profile,alias:sp"`

	CustomerID     string    `bun:"customer_id,pk" json:"customer_id"`
	Styles         []string  `bun:"style_preferences,array" json:"style_preferences,omitempty"`
	FavoriteColors []string  `bun:"favorite_colors,array" json:"favorite_colors,omitempty"`
	Brands         []string  `bun:"brand_preferences,array" json:"brand_preferences,omitempty"`
	Occasions      []string  `bun:"occasion_preferences,array" json:"occasion_preferences,omitempty"`
	Sizes          []string  `bun:"size_preferences,array" json:"size_preferences,omitempty"`
	PriceMin       float64   `bun:"price_range_min" json:"price_range_min,omitempty"`
	PriceMax       float64   `bun:"price_range_max" json:"price_range_max,omitempty"`
	UpdatedAt      time.Time `bun:"updated_at" json:"updated_at"`
}

type Order struct {
	bun.BaseModel `bun:"table:retail.order,alias:o"`

	ID            int64       `bun:"order_id,pk,autoincrement" json:"order_id"`
	Number        string      `bun:"order_number,unique,notnull" json:"order_number"`
	CustomerID    string      `bun:"customer_id,notnull" json:"customer_id"`
	Status        string      `bun:"order_status" json:"order_status"`
	Subtotal      float64     `bun:"subtotal" json:"subtotal"`
	Tax           float64     `bun:"tax_amount" json:"tax_amount"`
	Shipping      float64     `bun:"shipping_amount" json:"shipping_amount"`
	Total         float64     `bun:"total_amount" json:"total_amount"`
	Currency      string      `bun:"currency" json:"currency"`
	PaymentMethod string      `bun:"payment_method" json:"payment_method,omitempty"`
	OrderedAt     time.Time   `bun:"order_date" json:"order_date"`
	Lines         []OrderLine `bun:"rel:has-many,join:order_id=order_id" json:"line_items,omitempty"`
}

type OrderLine struct {
	bun.BaseModel `bun:"table:retail.order_line_item,alias:li"`

	ID        int64   `bun:"line_item_id,pk,autoincrement" json:"line_item_id"`
	OrderID   int64   `bun:"order_id,notnull" json:"order_id"`
	SKUID     string  `bun:"sku_id,notnull" json:"sku_id"`
	ProductID string  `bun:"product_id" json:"product_id"`
	Name      string  `bun:"product_name" json:"product_name,omitempty"`
	Quantity  int     `bun:"quantity" json:"quantity"`
	UnitPrice float64 `bun:"unit_price" json:"unit_price"`
	LineTotal float64 `bun:"line_total" json:"line_total"`
}

type Return struct {
	bun.BaseModel `bun:"table:retail.return_request,alias:rr"`

	ID           int64     `bun:"return_id,pk,autoincrement" json:"return_id"`
	OrderID      int64     `bun:"order_id,notnull" json:"order_id"`
	OrderNumber  string    `bun:"order_number" json:"order_number"`
	CustomerID   string    `bun:"customer_id" json:"customer_id"`
	Reason       string    `bun:"return_reason" json:"return_reason"`
	Status       string    `bun:"return_status" json:"return_status"`
	RefundAmount float64   `bun:"refund_amount" json:"refund_amount"`
	Notes        string    `bun:"notes" json:"notes,omitempty"`
	RequestedAt  time.Time `bun:"requested_date" json:"requested_date"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
