package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/cppcontext-mcp/internal/config"
	"github.com/dshills/cppcontext-mcp/internal/indexer"
)

var (
	flagForce bool
	flagFull  bool
	flagRoots []string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the index",
	Long: `Discover, chunk, enrich and embed every source file under the configured
roots, then publish a new build. Unchanged files reuse their vectors from
the live build unless --force or --full is given.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "re-embed every file")
	indexCmd.Flags().BoolVar(&flagFull, "full", false, "disable incremental reuse")
	indexCmd.Flags().StringSliceVar(&flagRoots, "root", nil, "root to index as [engine=|project=]path (repeatable, overrides config)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	idx, err := a.indexer()
	if err != nil {
		return err
	}

	cfg := a.cfg.IndexerConfig(!flagFull, flagForce)
	if len(flagRoots) > 0 {
		roots, err := rootsFromFlags(flagRoots)
		if err != nil {
			return err
		}
		cfg.Roots = roots
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := idx.Build(ctx, cfg)
	if err != nil {
		return err
	}
	return printStats(stats)
}

func rootsFromFlags(values []string) ([]indexer.Root, error) {
	var roots []indexer.Root
	for _, v := range values {
		parsed, err := config.ParseRoots(v)
		if err != nil {
			return nil, err
		}
		roots = append(roots, parsed...)
	}
	return roots, nil
}

func printStats(stats *indexer.Statistics) error {
	if flagJSON {
		return printJSON(stats)
	}

	fmt.Printf("Build %s\n", stats.BuildID)
	fmt.Printf("  files:   %d discovered, %d indexed, %d reused, %d empty, %d failed\n",
		stats.FilesDiscovered, stats.FilesIndexed, stats.FilesReused, stats.FilesEmpty, stats.FilesFailed)
	fmt.Printf("  chunks:  %d total, %d embedded, %d reused\n",
		stats.ChunksTotal, stats.ChunksCreated, stats.ChunksReused)
	fmt.Printf("  entities: %d declarations\n", stats.Declarations)
	if e := stats.Embedding; e.BatchFailures > 0 || e.ZeroVectors > 0 {
		fmt.Printf("  embedding: %d batch failures, %d retried items, %d zero vectors\n",
			e.BatchFailures, e.ItemRetries, e.ZeroVectors)
	}
	fmt.Printf("  took:    %s\n", stats.Duration.Round(time.Millisecond))
	for _, msg := range stats.ErrorMessages {
		fmt.Printf("  error: %s\n", msg)
	}
	return nil
}
