// Package cmd implements the CLI commands for deckproxy using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deckproxy",
	Short: "deckproxy — download proxy with slide-deck synthesis",
	Long: `deckproxy sits behind a download endpoint: it fetches a remote resource,
decides what it actually is (binary, generic JSON, or a slide-deck
manifest), and emits a matching response — a byte-exact passthrough
with an inferred filename, pretty-printed JSON, or a freshly compiled
presentation assembled from the manifest's per-slide images.

Usage:
  deckproxy serve [flags]
  deckproxy get <url> [flags]`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
