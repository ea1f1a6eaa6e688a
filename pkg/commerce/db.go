package commerce

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Config is read with the DATABASE prefix. An empty DSN selects the
// in-memory demo store.
type Config struct {
	DSN          string        `envconfig:"DSN"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
}

func (c Config) Enabled() bool {
	return c.DSN != ""
}

func Open(cfg Config) (*bun.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.New("database dsn is required")
	}
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	)
	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *bun.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	log.Ctx(ctx).Info().Msg("database migrations applied")
	return nil
}

// SeedPostgres inserts the demo data, leaving existing rows untouched.
func SeedPostgres(ctx context.Context, db *bun.DB, seed Seed, now time.Time) error {
	seed.stamp(now)
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(seed.Products) > 0 {
			if _, err := tx.NewInsert().Model(&seed.Products).On("CONFLICT (product_id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("seed products: %w", err)
			}
		}
		if len(seed.Reviews) > 0 {
			if _, err := tx.NewInsert().Model(&seed.Reviews).On("CONFLICT (review_id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("seed reviews: %w", err)
			}
		}
		for _, c := range seed.Customers {
			customer := c.Customer
			if _, err := tx.NewInsert().Model(&customer).On("CONFLICT (customer_id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("seed customer %s: %w", c.ID, err)
			}
			if c.Profile == nil {
				continue
			}
			profile := *c.Profile
			profile.CustomerID = c.ID
			if _, err := tx.NewInsert().Model(&profile).On("CONFLICT (customer_id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("seed profile %s: %w", c.ID, err)
			}
		}
		for _, so := range seed.Orders {
			exists, err := tx.NewSelect().Model((*Order)(nil)).Where("o.order_number = ?", so.Number).Exists(ctx)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			o := so.order(now)
			if _, err := tx.NewInsert().Model(&o).Returning("order_id").Exec(ctx); err != nil {
				return fmt.Errorf("seed order %s: %w", so.Number, err)
			}
			for i := range o.Lines {
				o.Lines[i].OrderID = o.ID
			}
			if _, err := tx.NewInsert().Model(&o.Lines).Exec(ctx); err != nil {
				return fmt.Errorf("seed order lines %s: %w", so.Number, err)
			}
		}
		return nil
	})
}
