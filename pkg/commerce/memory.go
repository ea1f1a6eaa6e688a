package commerce

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryService backs demo mode and tests.
type MemoryService struct {
	mu        sync.RWMutex
	now       func() time.Time
	products  map[string]Product
	reviews   []Review
	customers map[string]Customer
	profiles  map[string]StyleProfile
	orders    []Order
	returns   []Return
	sold      map[string]int
	nextOrder int64
	nextLine  int64
	nextRet   int64
}

var _ Service = (*MemoryService)(nil)

type MemoryOption func(*MemoryService)

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryService(opts ...MemoryOption) *MemoryService {
	s := &MemoryService{
		now:       time.Now,
		products:  make(map[string]Product),
		customers: make(map[string]Customer),
		profiles:  make(map[string]StyleProfile),
		sold:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryService) PutProducts(products ...Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
	}
}

func (s *MemoryService) PutReviews(reviews ...Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, reviews...)
}

func (s *MemoryService) PutCustomer(c Customer, profile *StyleProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
	if profile != nil {
		p := *profile
		p.CustomerID = c.ID
		s.profiles[c.ID] = p
	}
}

// PutOrder stores an existing order as-is, keeping its number and date.
func (s *MemoryService) PutOrder(o Order) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertOrder(o)
}

func (s *MemoryService) insertOrder(o Order) Order {
	s.nextOrder++
	o.ID = s.nextOrder
	for i := range o.Lines {
		s.nextLine++
		o.Lines[i].ID = s.nextLine
		o.Lines[i].OrderID = o.ID
		s.sold[o.Lines[i].ProductID] += o.Lines[i].Quantity
	}
	s.orders = append(s.orders, o)
	return o
}

func (s *MemoryService) Products(_ context.Context, q ProductQuery) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if !matchesProduct(p, q) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit := limitOr(q.Limit, 50); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesProduct(p Product, q ProductQuery) bool {
	if p.Status != "" && !strings.EqualFold(p.Status, "ACTIVE") {
		return false
	}
	if len(q.Types) > 0 {
		ok := false
		for _, t := range q.Types {
			if strings.EqualFold(p.Type, t) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if q.Gender != "" && !strings.EqualFold(p.Gender, q.Gender) {
		return false
	}
	if q.Color != "" && !strings.Contains(strings.ToLower(p.Color), strings.ToLower(q.Color)) {
		return false
	}
	return true
}

func (s *MemoryService) Product(_ context.Context, id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryService) Reviews(_ context.Context, productID string, limit int) ([]Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Review
	for _, r := range s.reviews {
		if productID == "" || r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit = limitOr(limit, 10); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Trending ranks products by units sold, then id.
func (s *MemoryService) Trending(_ context.Context, limit int) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := s.sold[out[i].ID], s.sold[out[j].ID]
		if a != b {
			return a > b
		}
		return out[i].ID < out[j].ID
	})
	if limit = limitOr(limit, 10); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryService) Customer(_ context.Context, id string) (Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryService) StyleProfile(_ context.Context, customerID string) (StyleProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[customerID]
	if !ok {
		return StyleProfile{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryService) StyleProfiles(_ context.Context, limit int) ([]StyleProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StyleProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	if limit = limitOr(limit, 100); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryService) Order(_ context.Context, number string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if strings.EqualFold(o.Number, number) {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

func (s *MemoryService) LatestOrder(ctx context.Context, customerID string) (Order, error) {
	orders, err := s.ListOrders(ctx, customerID, 1)
	if err != nil {
		return Order{}, err
	}
	if len(orders) == 0 {
		return Order{}, ErrNotFound
	}
	return orders[0], nil
}

func (s *MemoryService) ListOrders(_ context.Context, customerID string, limit int) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OrderedAt.Equal(out[j].OrderedAt) {
			return out[i].OrderedAt.After(out[j].OrderedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit = limitOr(limit, 5); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryService) CreateOrder(_ context.Context, in NewOrder) (Order, error) {
	o, err := buildOrder(in)
	if err != nil {
		return Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[in.CustomerID]; !ok {
		return Order{}, ErrCustomerRequired
	}
	o.OrderedAt = s.now()
	return s.insertOrder(o), nil
}

func (s *MemoryService) CreateReturn(ctx context.Context, in NewReturn) (Return, error) {
	o, err := s.Order(ctx, in.OrderNumber)
	if err != nil {
		return Return{}, err
	}
	if in.CustomerID != "" && o.CustomerID != in.CustomerID {
		return Return{}, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if ok, _ := ReturnEligibility(o, now); !ok {
		return Return{}, ErrNotEligible
	}
	s.nextRet++
	r := newReturn(o, in, now)
	r.ID = s.nextRet
	s.returns = append(s.returns, r)
	return r, nil
}

func newReturn(o Order, in NewReturn, now time.Time) Return {
	reason := in.Reason
	if strings.TrimSpace(reason) == "" {
		reason = DefaultReturnReason
	}
	notes := in.Notes
	if notes == "" {
		notes = "Created by assistant. Reason: " + reason
	}
	return Return{
		OrderID:      o.ID,
		OrderNumber:  o.Number,
		CustomerID:   o.CustomerID,
		Reason:       reason,
		Status:       ReturnPending,
		RefundAmount: round2(o.Subtotal + o.Tax),
		Notes:        notes,
		RequestedAt:  now,
	}
}

func (s *MemoryService) Return(_ context.Context, id int64) (Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.returns {
		if r.ID == id {
			return r, nil
		}
	}
	return Return{}, ErrNotFound
}

func (s *MemoryService) ListReturns(_ context.Context, customerID string, limit int) ([]Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Return
	for i := len(s.returns) - 1; i >= 0; i-- {
		if s.returns[i].CustomerID == customerID {
			out = append(out, s.returns[i])
		}
	}
	if limit = limitOr(limit, 5); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
