package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed products, reviews and style profiles whose text changed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		b, err := openBackends(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		if b.db == nil || !strings.EqualFold(b.retrieval.Store, "pgvector") {
			return errors.New("index writes to pgvector; set DATABASE_DSN and RETRIEVAL_STORE=pgvector")
		}
		if b.embedder == nil {
			return errors.New("embedding backend is not configured")
		}

		stats, err := b.index(ctx)
		fmt.Printf("seen %d, embedded %d, unchanged %d, failed %d\n", stats.Seen, stats.Embedded, stats.Skipped, stats.Failed)
		return err
	},
}
