package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	baseURL string
	session string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "playctl",
		Short: "Command-line client for the search playground",
		Long: `playctl talks to the playground's HTTP API. It lists the configured
collections, triggers dataset synchronisation, runs queries and load tests.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			slog.SetDefault(logger.New(os.Stderr, level, "text"))
		},
	}

	defaultURL := os.Getenv("SP_PLAYGROUND_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", defaultURL, "base URL of the playground service")
	flags.StringVar(&opts.session, "session", "", "session id sent as X-Session-ID")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "HTTP request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newCollectionsCmd(opts),
		newSyncCmd(opts),
		newSearchCmd(opts),
		newBenchCmd(opts),
	)
	return cmd
}

func (o *rootOptions) client() *apiClient {
	return newAPIClient(o.baseURL, o.session, o.timeout)
}
