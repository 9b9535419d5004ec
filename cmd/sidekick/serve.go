package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/sidekick/internal/config"
	"github.com/mark3labs/sidekick/internal/orchestrator"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	name    string
	dataDir string
	agent   string
	model   string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve session tools to MCP clients",
	Long: `Start the embedded NATS server and expose the session tools
(subagent_run, web_search, web_fetch, session_import, model_lookup)
to MCP clients over streamable HTTP.

The server runs until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.name, "name", "n", "", "Session name (default: working directory name)")
	serveCmd.Flags().StringVar(&serveFlags.dataDir, "data-dir", "", "Data directory for NATS storage (default: .sidekick)")
	serveCmd.Flags().StringVar(&serveFlags.agent, "agent", "", "Agent executable to spawn (default: from config)")
	serveCmd.Flags().StringVarP(&serveFlags.model, "model", "m", "", "Default model for subagent runs")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sessionName := serveFlags.name
	if sessionName == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		sessionName = sanitizeSessionName(wd)
	}
	if err := validateSessionName(sessionName); err != nil {
		return err
	}

	agentBin := cfg.AgentBin
	if serveFlags.agent != "" {
		agentBin = serveFlags.agent
	}
	model := cfg.Model
	if serveFlags.model != "" {
		model = serveFlags.model
	}

	orch, err := orchestrator.New(orchestrator.Config{
		SessionName:    sessionName,
		DataDir:        resolveDataDir(serveFlags.dataDir, cfg),
		AgentBin:       agentBin,
		Model:          model,
		TimeoutSeconds: cfg.TimeoutSeconds,
		SearchEndpoint: cfg.SearchEndpoint,
		SearchAPIKey:   cfg.SearchAPIKey,
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

	fmt.Printf("Session:  %s\n", sessionName)
	fmt.Printf("MCP URL:  %s\n", orch.MCPURL())
	fmt.Println("Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nShutting down gracefully...")
	return nil
}
