package template

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/sidekick/internal/git"
	"github.com/mark3labs/sidekick/internal/logger"
	"github.com/mark3labs/sidekick/internal/session"
)

// historyRuns caps how many prior runs are summarized in the prompt.
const historyRuns = 5

// historyTextLimit caps how much of each run's final text is quoted.
const historyTextLimit = 400

// Variables holds the data to be injected into template placeholders.
type Variables struct {
	Session string // Session name
	Git     string // Formatted git status line
	History string // Formatted summaries of prior runs
	Extra   string // Extra instructions
}

// Render replaces {{variable}} placeholders in template with actual values.
// Supports the following variables:
// - {{session}} - Session name
// - {{git}} - Git status line (empty outside a repository)
// - {{history}} - Prior run summaries (empty for a fresh session)
// - {{extra}} - Extra instructions (empty if none)
func Render(template string, vars Variables) string {
	result := template

	replacements := map[string]string{
		"{{session}}": vars.Session,
		"{{git}}":     vars.Git,
		"{{history}}": vars.History,
		"{{extra}}":   vars.Extra,
	}

	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	return result
}

// LoadFromFile loads a template from a file.
// If the file doesn't exist or can't be read, returns an error.
func LoadFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	return string(data), nil
}

// GetTemplate returns the template content.
// If customPath is non-empty, loads from that file.
// Otherwise returns the default embedded template.
func GetTemplate(customPath string) (string, error) {
	if customPath == "" {
		return DefaultTemplate, nil
	}
	return LoadFromFile(customPath)
}

// BuildConfig holds configuration for building a system prompt.
type BuildConfig struct {
	SessionName  string         // Name of the session
	Store        *session.Store // Session store for loading prior runs (optional)
	WorkDir      string         // Working directory, used for git context
	TemplatePath string         // Path to custom template (optional)
	Extra        string         // Extra instructions appended to the prompt
}

// BuildSystemPrompt assembles the subagent system prompt from the template,
// the session's prior runs, and the repository state. Store and git lookups
// degrade to empty sections rather than failing the run.
func BuildSystemPrompt(ctx context.Context, cfg BuildConfig) (string, error) {
	tmpl, err := GetTemplate(cfg.TemplatePath)
	if err != nil {
		return "", err
	}

	vars := Variables{
		Session: cfg.SessionName,
		Extra:   cfg.Extra,
	}

	if cfg.WorkDir != "" {
		vars.Git = formatGit(cfg.WorkDir)
	}

	if cfg.Store != nil {
		state, err := cfg.Store.LoadState(ctx, cfg.SessionName)
		if err != nil {
			logger.Warn("Failed to load session history for prompt: %v", err)
		} else {
			vars.History = formatHistory(state)
		}
	}

	return strings.TrimSpace(Render(tmpl, vars)) + "\n", nil
}

// formatGit produces a one-section summary of the repository state,
// or an empty string outside a work tree.
func formatGit(dir string) string {
	info, err := git.GetInfo(dir)
	if err != nil {
		logger.Warn("Failed to read git info for prompt: %v", err)
		return ""
	}
	if info == nil {
		return ""
	}

	line := fmt.Sprintf("On branch %s at %s", info.Branch, info.Hash)
	if info.Dirty {
		line += " with uncommitted changes"
	}
	if info.Ahead > 0 || info.Behind > 0 {
		line += fmt.Sprintf(" (%d ahead, %d behind upstream)", info.Ahead, info.Behind)
	}
	return "## Repository\n" + line
}

// formatHistory summarizes the most recent completed runs.
func formatHistory(state *session.State) string {
	runs := state.RunList()
	if len(runs) == 0 {
		return ""
	}

	if len(runs) > historyRuns {
		runs = runs[len(runs)-historyRuns:]
	}

	var lines []string
	lines = append(lines, "## Previous Runs")
	for _, r := range runs {
		status := "in progress"
		switch {
		case !r.Done:
			// keep "in progress"
		case r.StopReason == "aborted":
			status = "aborted"
		case r.ExitCode != 0:
			status = fmt.Sprintf("failed (exit %d)", r.ExitCode)
		default:
			status = "done"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", status, r.Task))
		if text := truncate(r.FinalText, historyTextLimit); text != "" {
			lines = append(lines, "  "+strings.ReplaceAll(text, "\n", "\n  "))
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
