package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/api"
	configx "github.com/tanpawarit/Chative-Retail-Assistant/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		httpCfg, err := configx.New[api.Config]("HTTP")
		if err != nil {
			return err
		}

		b, err := openBackends(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		orch, err := buildOrchestrator(ctx, b)
		if err != nil {
			return err
		}

		if err := api.Serve(ctx, orch, *httpCfg); err != nil {
			return err
		}
		log.Info().Msg("server stopped")
		return nil
	},
}
