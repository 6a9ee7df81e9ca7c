// Package cmd — serve command.
// Wires the pipeline into the HTTP server and runs it.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gaurav-prasanna/deckproxy/core/deck"
	"github.com/gaurav-prasanna/deckproxy/core/fetch"
	"github.com/gaurav-prasanna/deckproxy/core/naming"
	"github.com/gaurav-prasanna/deckproxy/core/pipeline"
	"github.com/gaurav-prasanna/deckproxy/server"
	"github.com/gaurav-prasanna/deckproxy/upstream"
)

// defaultAllowedHosts are the origin patterns the proxy will fetch from
// unless overridden with --allow_host.
var defaultAllowedHosts = []string{"*.manus.im", "*.manuscdn.com"}

var (
	flagPort         int
	flagAllowedHosts []string
	flagUpstreamURL  string
	flagTimeout      time.Duration
	flagSlideWorkers int
	flagDev          bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download proxy HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&flagPort, "port", 3000, "Port to listen on")
	serveCmd.Flags().StringSliceVar(&flagAllowedHosts, "allow_host", defaultAllowedHosts,
		"Origin host pattern the proxy may fetch from (repeatable; \"*.\" prefix matches subdomains)")
	serveCmd.Flags().StringVar(&flagUpstreamURL, "upstream_url", envOr("DECKPROXY_UPSTREAM_URL", upstream.DefaultBaseURL),
		"Base URL of the upstream task/file API")
	serveCmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "Per-fetch timeout")
	serveCmd.Flags().IntVar(&flagSlideWorkers, "slide_workers", 1,
		"Concurrent slide image downloads (1 = strictly sequential)")
	serveCmd.Flags().BoolVar(&flagDev, "dev", false, "Use human-readable console logging")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(flagDev)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	fetcher := fetch.NewWithTimeout(flagAllowedHosts, flagTimeout)
	compiler := deck.NewCompiler(fetcher, logger, deck.WithConcurrency(flagSlideWorkers))
	pipe := pipeline.New(fetcher, naming.Default(), compiler, logger)

	srv := server.New(pipe, upstream.NewClient(flagUpstreamURL), logger)
	return srv.Start(flagPort)
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
