// Command docchunk structures documents into paragraphs, anchored assets and
// retrieval chunks from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docchunk/internal/engine"
	"github.com/dgallion1/docchunk/internal/pipeline"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	verbose      bool
	jsonOutput   bool
	chunkSize    int
	headingDepth int
	noAssets     bool
	noFallback   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docchunk",
	Short: "Structure documents into retrieval chunks",
	Long: `docchunk reads a document, classifies its paragraphs, extracts embedded
images, anchors each image to the paragraph it belongs to and partitions the
paragraphs into size-bounded chunks.

Word documents (.docx) go through the full structuring engine. Text, Markdown,
CSV, HTML and PDF files are flattened into paragraphs and chunked without
assets.

Examples:
  # Print the chunks of a document
  docchunk process report.docx

  # Write images and store the chunks in SQLite
  docchunk process report.docx --asset-dir ./assets --db ./docchunk.db

  # Inspect classification and anchoring
  docchunk paragraphs report.docx
  docchunk assets report.docx --json`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaults := engine.DefaultOptions()

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", defaults.ChunkSize, "Target chunk size in characters")
	rootCmd.PersistentFlags().IntVar(&headingDepth, "heading-depth", defaults.HeadingSplitDepth, "Close a chunk after headings at or above this level (0 disables)")
	rootCmd.PersistentFlags().BoolVar(&noAssets, "no-assets", false, "Skip image extraction")
	rootCmd.PersistentFlags().BoolVar(&noFallback, "no-fallback", false, "Leave images without evidence unassigned")

	// Add subcommands
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(paragraphsCmd)
	rootCmd.AddCommand(assetsCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func workerConfig() pipeline.WorkerConfig {
	opts := engine.DefaultOptions()
	opts.ChunkSize = chunkSize
	opts.HeadingSplitDepth = headingDepth
	opts.ExtractAssets = !noAssets
	opts.SequentialFallback = !noFallback
	return pipeline.WorkerConfig{
		Engine:               opts,
		MaxConcurrentStore:   4,
		PDFFallbackPdftotext: true,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// extractFile reads and processes path with the global flags.
func extractFile(ctx context.Context, log *slog.Logger, path string) (*pipeline.Extracted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := pipeline.Extract(ctx, log, workerConfig(), nil, filepath.Base(path), data)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", path, err)
	}
	for _, w := range doc.Warnings {
		log.Warn("extraction warning", "warning", w)
	}
	return doc, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
