package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/cppcontext-mcp/internal/config"
	"github.com/dshills/cppcontext-mcp/internal/embedder"
	"github.com/dshills/cppcontext-mcp/internal/indexer"
	"github.com/dshills/cppcontext-mcp/internal/searcher"
	"github.com/dshills/cppcontext-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "cppcontext-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	store    *storage.Store
	handle   *embedder.Handle
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance. The indexer and searcher share
// one provider handle, so builds and queries never embed concurrently.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	handle := embedder.NewHandle(provider, cfg.HandleOptions(logger))

	cache, err := cfg.ResultCache(ctx)
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("failed to initialize result cache: %w", err)
	}

	store := storage.NewStore(cfg.Index.Dir, logger)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		cfg:      cfg,
		store:    store,
		handle:   handle,
		indexer:  indexer.New(store, handle, logger),
		searcher: searcher.New(store, handle, searcher.Options{Cache: cache, Logger: logger}),
		logger:   logger,
	}

	s.registerTools()

	logger.Info("mcp server ready",
		slog.String("index_dir", cfg.Index.Dir),
		slog.String("provider", handle.Provider()),
		slog.String("model", handle.Model()),
		slog.Int("dimension", handle.Dimension()))
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve() error {
	defer func() { _ = s.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close releases the searcher, its cache and the provider
func (s *Server) Close() error {
	return errors.Join(s.searcher.Close(), s.handle.Close())
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(queryCodeTool(), s.handleQueryCode)
	s.mcp.AddTool(describeEntityTool(), s.handleDescribeEntity)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
