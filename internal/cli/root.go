// Package cli provides the command-line interface of the retail assistant.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/Chative-Retail-Assistant/pkg/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "retail-assistant",
	Short: "Multi-agent shopping assistant for a fashion store",
	Long: `retail-assistant routes each shopper message to a specialist agent
(stylist, catalog search, lookbook, checkout, returns, recommender or
concierge) that answers with the help of catalog search and order tools.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envFile != "" {
			configx.SetEnvFile(envFile)
		}
		if verbose {
			log.Logger = log.Logger.Level(zerolog.DebugLevel)
			zerolog.DefaultContextLogger = &log.Logger
		}
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(indexCmd)
}
