package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/cppcontext-mcp/internal/mcp"
	"github.com/dshills/cppcontext-mcp/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	a.logger.Info("cppcontext MCP server starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	server, err := mcp.NewServer(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve()
	}()

	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down", "signal", sig.String())
		return server.Close()
	case err := <-errChan:
		return err
	}
}
