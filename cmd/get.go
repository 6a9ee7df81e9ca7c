// Package cmd — get command.
// One-shot mode: runs the same fetch → classify → synthesize pipeline as
// the server, writing the result to disk instead of an HTTP response.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gaurav-prasanna/deckproxy/core/deck"
	"github.com/gaurav-prasanna/deckproxy/core/fetch"
	"github.com/gaurav-prasanna/deckproxy/core/naming"
	"github.com/gaurav-prasanna/deckproxy/core/output"
	"github.com/gaurav-prasanna/deckproxy/core/pipeline"
)

var (
	flagGetFilename     string
	flagGetAllowedHosts []string
	flagGetOutputDir    string
	flagGetTimeout      time.Duration
)

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Fetch one URL through the pipeline and write the result to disk",
	Long: `Get fetches a URL, classifies the payload, and writes the emitted file:
a compiled presentation for slide-deck manifests, pretty-printed JSON
for generic JSON, or the original bytes for anything else.

Examples:
  deckproxy get https://cdn.example.com/deck-manifest --filename launch-deck
  deckproxy get https://cdn.example.com/report.pdf --output_dir ./out`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().StringVar(&flagGetFilename, "filename", "", "Base name for the written file")
	getCmd.Flags().StringSliceVar(&flagGetAllowedHosts, "allow_host", defaultAllowedHosts,
		"Origin host pattern the proxy may fetch from (repeatable)")
	getCmd.Flags().StringVar(&flagGetOutputDir, "output_dir", "", "Output directory (default: current directory)")
	getCmd.Flags().DurationVar(&flagGetTimeout, "timeout", 30*time.Second, "Per-fetch timeout")
}

func runGet(cmd *cobra.Command, args []string) error {
	fetcher := fetch.NewWithTimeout(flagGetAllowedHosts, flagGetTimeout)
	compiler := deck.NewCompiler(fetcher, zap.NewNop())
	pipe := pipeline.New(fetcher, naming.Default(), compiler, zap.NewNop())

	writer, err := output.New(flagGetOutputDir)
	if err != nil {
		return fmt.Errorf("initializing output writer: %w", err)
	}

	payload, err := pipe.Run(context.Background(), args[0], flagGetFilename)
	if err != nil {
		return err
	}
	defer payload.Close()

	path, err := writer.Write(payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "✓ Written: %s\n", path)
	return nil
}
