package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/cppcontext-mcp/internal/config"
	"github.com/dshills/cppcontext-mcp/internal/embedder"
	"github.com/dshills/cppcontext-mcp/internal/indexer"
	"github.com/dshills/cppcontext-mcp/internal/searcher"
	"github.com/dshills/cppcontext-mcp/internal/storage"
)

var (
	flagConfig string
	flagJSON   bool
)

var rootCmd = &cobra.Command{
	Use:           "cppcontext",
	Short:         "Structural and semantic search over large C++ codebases",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("cppcontext %s (built %s, sqlite %s/%s)\n",
		version, buildTime, storage.BuildMode, storage.DriverName))
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print machine-readable JSON")
}

// app holds what every command needs
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *storage.Store
	handle *embedder.Handle
}

// loadApp reads configuration and sets up logging on stderr. Stdout is left
// to command output and the MCP protocol.
func loadApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  storage.NewStore(cfg.Index.Dir, logger),
	}, nil
}

// embedder opens the configured provider behind a serialized handle
func (a *app) embedder() (*embedder.Handle, error) {
	if a.handle != nil {
		return a.handle, nil
	}
	provider, err := embedder.New(a.cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.handle = embedder.NewHandle(provider, a.cfg.HandleOptions(a.logger))
	return a.handle, nil
}

func (a *app) indexer() (*indexer.Indexer, error) {
	handle, err := a.embedder()
	if err != nil {
		return nil, err
	}
	return indexer.New(a.store, handle, a.logger), nil
}

func (a *app) searcher(ctx context.Context) (*searcher.Searcher, error) {
	handle, err := a.embedder()
	if err != nil {
		return nil, err
	}
	cache, err := a.cfg.ResultCache(ctx)
	if err != nil {
		return nil, err
	}
	return searcher.New(a.store, handle, searcher.Options{Cache: cache, Logger: a.logger}), nil
}

func (a *app) close() {
	if a.handle != nil {
		_ = a.handle.Close()
	}
}
