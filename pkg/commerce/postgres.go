package commerce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// PostgresService implements Service over the retail schema with bun.
type PostgresService struct {
	db  *bun.DB
	now func() time.Time
}

var _ Service = (*PostgresService)(nil)

func NewPostgresService(db *bun.DB) *PostgresService {
	return &PostgresService{db: db, now: time.Now}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresService) Products(ctx context.Context, q ProductQuery) ([]Product, error) {
	var out []Product
	sel := s.db.NewSelect().
		Model(&out).
		Where("p.status = 'ACTIVE'").
		OrderExpr("p.product_id ASC").
		Limit(limitOr(q.Limit, 50))
	if len(q.Types) > 0 {
		sel.Where("p.product_type IN (?)", bun.In(q.Types))
	}
	if q.Gender != "" {
		sel.Where("p.gender ILIKE ?", q.Gender)
	}
	if q.Color != "" {
		sel.Where("p.color ILIKE ?", "%"+q.Color+"%")
	}
	if err := sel.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *PostgresService) Product(ctx context.Context, id string) (Product, error) {
	var p Product
	if err := s.db.NewSelect().Model(&p).Where("p.product_id = ?", id).Scan(ctx); err != nil {
		return Product{}, notFound(err)
	}
	return p, nil
}

func (s *PostgresService) Reviews(ctx context.Context, productID string, limit int) ([]Review, error) {
	var out []Review
	sel := s.db.NewSelect().
		Model(&out).
		OrderExpr("r.updated_at DESC").
		Limit(limitOr(limit, 10))
	if productID != "" {
		sel.Where("r.product_id = ?", productID)
	}
	if err := sel.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return out, nil
}

func (s *PostgresService) Trending(ctx context.Context, limit int) ([]Product, error) {
	var out []Product
	err := s.db.NewSelect().
		Model(&out).
		ColumnExpr("p.*").
		Join("LEFT JOIN retail.order_line_item AS li ON li.product_id = p.product_id").
		Where("p.status = 'ACTIVE'").
		Group("p.product_id").
		OrderExpr("COALESCE(SUM(li.quantity), 0) DESC").
		OrderExpr("p.product_id ASC").
		Limit(limitOr(limit, 10)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trending products: %w", err)
	}
	return out, nil
}

func (s *PostgresService) Customer(ctx context.Context, id string) (Customer, error) {
	var c Customer
	if err := s.db.NewSelect().Model(&c).Where("c.customer_id = ?", id).Scan(ctx); err != nil {
		return Customer{}, notFound(err)
	}
	return c, nil
}

func (s *PostgresService) StyleProfile(ctx context.Context, customerID string) (StyleProfile, error) {
	var p StyleProfile
	if err := s.db.NewSelect().Model(&p).Where("sp.customer_id = ?", customerID).Scan(ctx); err != nil {
		return StyleProfile{}, notFound(err)
	}
	return p, nil
}

func (s *PostgresService) StyleProfiles(ctx context.Context, limit int) ([]StyleProfile, error) {
	var out []StyleProfile
	err := s.db.NewSelect().
		Model(&out).
		OrderExpr("sp.customer_id ASC").
		Limit(limitOr(limit, 100)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list style profiles: %w", err)
	}
	return out, nil
}

func (s *PostgresService) Order(ctx context.Context, number string) (Order, error) {
	var o Order
	err := s.db.NewSelect().
		Model(&o).
		Relation("Lines").
		Where("o.order_number = ?", number).
		Scan(ctx)
	if err != nil {
		return Order{}, notFound(err)
	}
	return o, nil
}

func (s *PostgresService) LatestOrder(ctx context.Context, customerID string) (Order, error) {
	orders, err := s.ListOrders(ctx, customerID, 1)
	if err != nil {
		return Order{}, err
	}
	if len(orders) == 0 {
		return Order{}, ErrNotFound
	}
	return orders[0], nil
}

func (s *PostgresService) ListOrders(ctx context.Context, customerID string, limit int) ([]Order, error) {
	var out []Order
	err := s.db.NewSelect().
		Model(&out).
		Relation("Lines").
		Where("o.customer_id = ?", customerID).
		OrderExpr("o.order_date DESC, o.order_id DESC").
		Limit(limitOr(limit, 5)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// CreateOrder writes the order and its lines in one transaction.
func (s *PostgresService) CreateOrder(ctx context.Context, in NewOrder) (Order, error) {
	o, err := buildOrder(in)
	if err != nil {
		return Order{}, err
	}
	o.OrderedAt = s.now()

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*Customer)(nil)).
			Where("c.customer_id = ?", in.CustomerID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrCustomerRequired
		}

		if _, err := tx.NewInsert().Model(&o).Returning("order_id").Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i := range o.Lines {
			o.Lines[i].OrderID = o.ID
		}
		if _, err := tx.NewInsert().Model(&o.Lines).Returning("line_item_id").Exec(ctx); err != nil {
			return fmt.Errorf("insert order lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *PostgresService) CreateReturn(ctx context.Context, in NewReturn) (Return, error) {
	o, err := s.Order(ctx, in.OrderNumber)
	if err != nil {
		return Return{}, err
	}
	if in.CustomerID != "" && o.CustomerID != in.CustomerID {
		return Return{}, ErrNotFound
	}
	now := s.now()
	if ok, _ := ReturnEligibility(o, now); !ok {
		return Return{}, ErrNotEligible
	}
	r := newReturn(o, in, now)
	if _, err := s.db.NewInsert().Model(&r).Returning("return_id").Exec(ctx); err != nil {
		return Return{}, fmt.Errorf("insert return: %w", err)
	}
	return r, nil
}

func (s *PostgresService) Return(ctx context.Context, id int64) (Return, error) {
	var r Return
	if err := s.db.NewSelect().Model(&r).Where("rr.return_id = ?", id).Scan(ctx); err != nil {
		return Return{}, notFound(err)
	}
	return r, nil
}

func (s *PostgresService) ListReturns(ctx context.Context, customerID string, limit int) ([]Return, error) {
	var out []Return
	err := s.db.NewSelect().
		Model(&out).
		Where("rr.customer_id = ?", customerID).
		OrderExpr("rr.requested_date DESC, rr.return_id DESC").
		Limit(limitOr(limit, 5)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	return out, nil
}
