package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/sidekick/internal/config"
	"github.com/mark3labs/sidekick/internal/importer"
	"github.com/mark3labs/sidekick/internal/orchestrator"
	"github.com/spf13/cobra"
)

var importFlags struct {
	dataDir string
}

var importCmd = &cobra.Command{
	Use:   "import <url>",
	Short: "Import a shared conversation into the session store",
	Long: `Download a shared conversation export and replay its messages into
a session named after the export title. Imported transcripts are
read-only history; they never spawn agent runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFlags.dataDir, "data-dir", "", "Data directory for NATS storage (default: .sidekick)")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	// The importer names the target session itself; the orchestrator
	// session is only a host for the shared event store.
	orch, err := orchestrator.New(orchestrator.Config{
		SessionName: sanitizeSessionName(wd),
		DataDir:     resolveDataDir(importFlags.dataDir, cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	if err := orch.Start(); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	defer func() {
		if err := orch.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}()

	res, err := importer.New(orch.Store()).Import(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d messages into session %q", res.MessageCount, res.Session)
	if res.Title != "" {
		fmt.Printf(" (%s)", res.Title)
	}
	fmt.Println()
	return nil
}
