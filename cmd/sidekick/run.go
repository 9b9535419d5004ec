package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"charm.land/lipgloss/v2"
	"github.com/mark3labs/sidekick/internal/catalog"
	"github.com/mark3labs/sidekick/internal/config"
	"github.com/mark3labs/sidekick/internal/orchestrator"
	"github.com/mark3labs/sidekick/internal/subagent"
	"github.com/mark3labs/sidekick/internal/template"
	"github.com/spf13/cobra"
)

var runFlags struct {
	name              string
	model             string
	agent             string
	dataDir           string
	tools             []string
	timeout           int
	template          string
	extraInstructions string
}

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Run a task with a supervised subagent",
	Long: `Run a single task with a supervised subagent process.

The run command spawns the agent CLI, streams its JSON events into
cumulative run state, records the run in the session event log, and
prints the agent's final answer. The command's exit code mirrors the
agent's exit code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.name, "name", "n", "", "Session name (default: working directory name)")
	runCmd.Flags().StringVarP(&runFlags.model, "model", "m", "", "Model to use (catalog id, alias, or provider/id)")
	runCmd.Flags().StringVar(&runFlags.agent, "agent", "", "Agent executable to spawn (default: from config)")
	runCmd.Flags().StringVar(&runFlags.dataDir, "data-dir", "", "Data directory for NATS storage (default: .sidekick)")
	runCmd.Flags().StringSliceVar(&runFlags.tools, "tools", nil, "Restrict the agent to these tools (comma-separated)")
	runCmd.Flags().IntVar(&runFlags.timeout, "timeout", 0, "Wall-clock timeout in seconds, 0=none")
	runCmd.Flags().StringVarP(&runFlags.template, "template", "t", "", "Custom system prompt template file")
	runCmd.Flags().StringVarP(&runFlags.extraInstructions, "extra-instructions", "e", "", "Extra instructions for the system prompt")
}

func runRun(cmd *cobra.Command, args []string) error {
	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		return fmt.Errorf("task cannot be empty")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override config
	model := cfg.Model
	if runFlags.model != "" {
		model = runFlags.model
	}
	if model != "" {
		if m := catalog.Lookup(model); m != nil {
			model = m.Ref()
		} else {
			fmt.Fprintln(os.Stderr, dimStyle.Render("Unknown model "+model+", passing it through to the agent."))
		}
	}
	agentBin := cfg.AgentBin
	if runFlags.agent != "" {
		agentBin = runFlags.agent
	}
	timeout := cfg.TimeoutSeconds
	if runFlags.timeout > 0 {
		timeout = runFlags.timeout
	}

	// Determine session name
	sessionName := runFlags.name
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

	dataDir := resolveDataDir(runFlags.dataDir, cfg)

	progress := newProgressPrinter()
	orch, err := orchestrator.New(orchestrator.Config{
		SessionName:    sessionName,
		DataDir:        dataDir,
		AgentBin:       agentBin,
		Model:          model,
		Tools:          runFlags.tools,
		TimeoutSeconds: timeout,
		SearchEndpoint: cfg.SearchEndpoint,
		SearchAPIKey:   cfg.SearchAPIKey,
		OnProgress:     progress.update,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	if err := orch.Start(); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}

	// Ensure cleanup always runs using defer
	defer func() {
		if err := orch.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}()

	// Cancel the run on the first signal so the subagent gets its grace
	// period; a second signal exits immediately.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nStopping subagent...")
		cancel()
		<-sigChan
		os.Exit(1)
	}()

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	systemPrompt, err := template.BuildSystemPrompt(ctx, template.BuildConfig{
		SessionName:  sessionName,
		Store:        orch.Store(),
		WorkDir:      wd,
		TemplatePath: runFlags.template,
		Extra:        runFlags.extraInstructions,
	})
	if err != nil {
		return fmt.Errorf("failed to build system prompt: %w", err)
	}

	res, err := orch.RunTask(ctx, task, systemPrompt)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printResult(res)

	if err := orch.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
	}
	if res.ExitCode != 0 {
		os.Exit(res.ExitCode)
	}
	return nil
}

// sanitizeSessionName derives a session name from a directory path.
// Dots become hyphens (NATS subject constraint).
func sanitizeSessionName(dir string) string {
	return strings.ReplaceAll(filepath.Base(dir), ".", "-")
}

// validateSessionName enforces the NATS subject token constraints:
// alphanumeric, hyphens, underscores, max 64 characters.
func validateSessionName(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("session name too long (max 64 characters): %s", name)
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return fmt.Errorf("invalid session name: %s (use only alphanumeric, hyphens, underscores)", name)
		}
	}
	return nil
}

// resolveDataDir applies the flag > env > config > default precedence.
func resolveDataDir(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("SIDEKICK_DATA_DIR"); env != "" {
		return env
	}
	if cfg != nil && cfg.DataDir != "" {
		return cfg.DataDir
	}
	return ".sidekick"
}

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
)

// progressPrinter reports newly observed tool calls as the run streams.
type progressPrinter struct {
	seen int
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{}
}

func (p *progressPrinter) update(snap subagent.Snapshot) {
	for _, tc := range snap.ToolCalls[p.seen:] {
		fmt.Println(dimStyle.Render("  ⚒ " + tc.Name))
	}
	p.seen = len(snap.ToolCalls)
}

func printResult(res *subagent.Result) {
	fmt.Println()
	switch {
	case res.Aborted():
		fmt.Println(errStyle.Render("Run aborted."))
	case res.ExitCode != 0:
		fmt.Println(errStyle.Render(fmt.Sprintf("Run failed (exit %d).", res.ExitCode)))
	default:
		fmt.Println(titleStyle.Render("Run complete."))
	}

	if res.Model != "" || len(res.ToolCalls) > 0 {
		meta := fmt.Sprintf("%d tool calls", len(res.ToolCalls))
		if res.Model != "" {
			meta = res.Model + ", " + meta
		}
		fmt.Println(dimStyle.Render(meta))
	}

	fmt.Println()
	fmt.Println(renderMarkdown(res.Summary(), 100))
}
