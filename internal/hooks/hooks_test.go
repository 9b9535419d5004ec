package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	content := `version: 1
hooks:
  pre_run:
    command: echo "before {{task}}"
    timeout: 5
  post_run:
    command: echo "after {{run_id}}"
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected config, got nil")
	}
	if cfg.Hooks.PreRun == nil || cfg.Hooks.PreRun.Command != `echo "before {{task}}"` {
		t.Errorf("Unexpected pre_run hook: %+v", cfg.Hooks.PreRun)
	}
	if cfg.Hooks.PreRun.Timeout != 5 {
		t.Errorf("Expected timeout 5, got %d", cfg.Hooks.PreRun.Timeout)
	}
	if cfg.Hooks.PostRun == nil {
		t.Error("Expected post_run hook")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("Expected nil error for missing config, got %v", err)
	}
	if cfg != nil {
		t.Errorf("Expected nil config for missing file, got %+v", cfg)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestExecuteExpandsVariables(t *testing.T) {
	hook := &HookConfig{Command: "echo task={{task}} run={{run_id}} session={{session}}"}
	out, err := Execute(context.Background(), hook, t.TempDir(), Variables{
		Task:    "fix bug",
		RunID:   "run-1",
		Session: "proj",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "task=fix bug run=run-1 session=proj") {
		t.Errorf("Expected variables expanded, got %q", out)
	}
}

func TestExecuteNilHook(t *testing.T) {
	out, err := Execute(context.Background(), nil, t.TempDir(), Variables{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "" {
		t.Errorf("Expected empty output for nil hook, got %q", out)
	}
}

func TestExecuteFailureDegrades(t *testing.T) {
	hook := &HookConfig{Command: "echo partial; exit 3"}
	out, err := Execute(context.Background(), hook, t.TempDir(), Variables{})
	if err != nil {
		t.Fatalf("Expected graceful degradation, got error: %v", err)
	}
	if !strings.Contains(out, "[Hook command failed") {
		t.Errorf("Expected failure marker in output, got %q", out)
	}
	if !strings.Contains(out, "partial") {
		t.Errorf("Expected partial output preserved, got %q", out)
	}
}

func TestExecuteTimeout(t *testing.T) {
	hook := &HookConfig{Command: "sleep 30", Timeout: 1}
	start := time.Now()
	out, err := Execute(context.Background(), hook, t.TempDir(), Variables{})
	if err != nil {
		t.Fatalf("Expected graceful timeout, got error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("Execute did not return promptly after timeout (%v)", elapsed)
	}
	if !strings.Contains(out, "[Hook timed out") {
		t.Errorf("Expected timeout marker, got %q", out)
	}
}

func TestExecuteTimeoutKillsHookSubprocesses(t *testing.T) {
	// The hook's own child inherits the output pipes; the timeout must
	// take it down too rather than waiting for it to exit on its own.
	hook := &HookConfig{Command: "sleep 30 & wait", Timeout: 1}
	start := time.Now()
	out, err := Execute(context.Background(), hook, t.TempDir(), Variables{})
	if err != nil {
		t.Fatalf("Expected graceful timeout, got error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("Execute blocked on the hook's subprocess (%v)", elapsed)
	}
	if !strings.Contains(out, "[Hook timed out") {
		t.Errorf("Expected timeout marker, got %q", out)
	}
}

func TestExecuteContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hook := &HookConfig{Command: "sleep 30"}
	start := time.Now()
	if _, err := Execute(ctx, hook, t.TempDir(), Variables{}); err == nil {
		t.Fatal("Expected context cancellation to propagate")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("Execute did not return promptly after cancellation (%v)", elapsed)
	}
}

func TestExecuteStderrIncluded(t *testing.T) {
	hook := &HookConfig{Command: "echo out; echo err >&2"}
	out, err := Execute(context.Background(), hook, t.TempDir(), Variables{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "out") || !strings.Contains(out, "[stderr]") {
		t.Errorf("Expected stdout and stderr in output, got %q", out)
	}
}
