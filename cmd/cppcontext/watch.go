package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/cppcontext-mcp/internal/indexer"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index, then rebuild incrementally whenever sources change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 0, "quiet period before a rebuild (default from config)")
	watchCmd.Flags().StringSliceVar(&flagRoots, "root", nil, "root to watch as [engine=|project=]path (repeatable, overrides config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	idx, err := a.indexer()
	if err != nil {
		return err
	}

	cfg := a.cfg.IndexerConfig(true, false)
	if len(flagRoots) > 0 {
		roots, err := rootsFromFlags(flagRoots)
		if err != nil {
			return err
		}
		cfg.Roots = roots
	}
	debounce := a.cfg.Watch.Debounce
	if flagDebounce > 0 {
		debounce = flagDebounce
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := idx.Build(ctx, cfg)
	switch {
	case errors.Is(err, indexer.ErrNoFiles):
		a.logger.Warn("no source files yet, waiting for changes")
	case err != nil:
		return err
	default:
		if err := printStats(stats); err != nil {
			return err
		}
	}

	w, err := indexer.NewWatcher(idx, cfg, debounce, a.logger)
	if err != nil {
		return err
	}
	w.OnBuild = func(stats *indexer.Statistics, err error) {
		if err != nil {
			a.logger.Error("rebuild failed", slog.Any("error", err))
			return
		}
		_ = printStats(stats)
	}
	return w.Run(ctx)
}
