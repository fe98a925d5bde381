package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/cppcontext-mcp/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the index is ready to serve",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	handle, err := a.embedder()
	if err != nil {
		return err
	}
	report := a.store.Status(handle.Dimension())

	if flagJSON {
		return printJSON(report)
	}

	fmt.Printf("Index %s: %s\n", report.Root, report.State)
	if report.State != storage.StateReady {
		fmt.Printf("  reason: %s\n", report.Reason)
		if report.Remediation != "" {
			fmt.Printf("  fix:    %s\n", report.Remediation)
		}
		return nil
	}
	fmt.Printf("  build:     %s (%s)\n", report.BuildID, report.BuiltAt.Local().Format(time.DateTime))
	fmt.Printf("  items:     %d chunks from %d files\n", report.Items, report.Files)
	fmt.Printf("  embedder:  %s %s, dimension %d\n", report.Provider, report.Model, report.Dimension)
	fmt.Printf("  chunking:  size %d, overlap %d\n", report.ChunkSize, report.Overlap)
	fmt.Printf("  querying:  %s %s\n", handle.Provider(), handle.Model())
	return nil
}

// withRemediation appends the store's suggested fix to load failures
func withRemediation(err error) error {
	var ve *storage.ValidationError
	if errors.As(err, &ve) {
		return fmt.Errorf("%w\n%s", err, ve.Remediation())
	}
	return err
}
