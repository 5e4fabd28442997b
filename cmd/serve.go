package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/config"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the leads service",
		Long: `Starts the HTTP API, recovers interrupted jobs, registers active
schedules, and serves until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			app, err := server.Build(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			return app.Run(cmd.Context())
		},
	}
}
