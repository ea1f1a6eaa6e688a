package commerce

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"
)

//go:embed seed/catalog.json
var seedCatalog []byte

type SeedCustomer struct {
	Customer
	Profile *StyleProfile `json:"style_profile,omitempty"`
}

type SeedOrder struct {
	Number     string      `json:"order_number"`
	CustomerID string      `json:"customer_id"`
	DaysAgo    int         `json:"days_ago"`
	Lines      []LineInput `json:"lines"`
}

func (so SeedOrder) order(now time.Time) Order {
	o, _ := buildOrder(NewOrder{CustomerID: so.CustomerID, Lines: so.Lines})
	o.Number = so.Number
	o.OrderedAt = now.Add(-time.Duration(so.DaysAgo) * 24 * time.Hour)
	return o
}

// Seed is the demo catalog shipped with the binary.
type Seed struct {
	Products  []Product      `json:"products"`
	Reviews   []Review       `json:"reviews"`
	Customers []SeedCustomer `json:"customers"`
	Orders    []SeedOrder    `json:"orders"`
}

func LoadSeed() (Seed, error) {
	var seed Seed
	if err := json.Unmarshal(seedCatalog, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed catalog: %w", err)
	}
	return seed, nil
}

// Apply loads the seed into a memory service; order dates are relative to now.
func (seed Seed) Apply(s *MemoryService, now time.Time) {
	seed.stamp(now)
	s.PutProducts(seed.Products...)
	s.PutReviews(seed.Reviews...)
	for _, c := range seed.Customers {
		s.PutCustomer(c.Customer, c.Profile)
	}
	for _, so := range seed.Orders {
		s.PutOrder(so.order(now))
	}
}

func NewDemoService(now time.Time) (*MemoryService, error) {
	seed, err := LoadSeed()
	if err != nil {
		return nil, err
	}
	s := NewMemoryService()
	seed.Apply(s, now)
	return s, nil
}

// stamp fills missing timestamps in place.
func (seed Seed) stamp(now time.Time) {
	for i := range seed.Products {
		if seed.Products[i].UpdatedAt.IsZero() {
			seed.Products[i].UpdatedAt = now
		}
	}
	for i := range seed.Reviews {
		if seed.Reviews[i].UpdatedAt.IsZero() {
			seed.Reviews[i].UpdatedAt = now
		}
	}
	for _, c := range seed.Customers {
		if c.Profile != nil && c.Profile.UpdatedAt.IsZero() {
			c.Profile.UpdatedAt = now
		}
	}
}
