package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
	configx "github.com/tanpawarit/Chative-Retail-Assistant/pkg/config"
)

var migrateSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		dbCfg, err := configx.New[commerce.Config]("DATABASE")
		if err != nil {
			return err
		}
		if !dbCfg.Enabled() {
			return errors.New("DATABASE_DSN is required for migrate")
		}
		db, err := commerce.Open(*dbCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := commerce.Migrate(ctx, db); err != nil {
			return err
		}
		if !migrateSeed {
			return nil
		}

		seed, err := commerce.LoadSeed()
		if err != nil {
			return err
		}
		if err := commerce.SeedPostgres(ctx, db, seed, time.Now()); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		fmt.Printf("seeded %d products, %d customers, %d orders\n", len(seed.Products), len(seed.Customers), len(seed.Orders))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeed, "seed", false, "load the demo catalog after migrating")
}
