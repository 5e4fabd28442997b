// Package cmd defines the CLI commands for the leads backend executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leadsd",
		Short: "Business-lead ingestion and enrichment service",
		Long: `leadsd ingests business leads from scraping providers, deduplicates
them against prior work, and merges results into a canonical store. It runs
an HTTP API, a bounded work queue, and a cron scheduler in one process.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
