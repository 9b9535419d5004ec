package template

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/sidekick/internal/session"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     Variables
		want     string
	}{
		{
			name:     "all variables",
			template: "s={{session}} g={{git}} h={{history}} e={{extra}}",
			vars:     Variables{Session: "demo", Git: "G", History: "H", Extra: "E"},
			want:     "s=demo g=G h=H e=E",
		},
		{
			name:     "missing variables become empty",
			template: "[{{history}}]",
			vars:     Variables{Session: "demo"},
			want:     "[]",
		},
		{
			name:     "unknown placeholders untouched",
			template: "{{session}} {{port}}",
			vars:     Variables{Session: "demo"},
			want:     "demo {{port}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.template, tt.vars)
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetTemplate(t *testing.T) {
	// Default template when no custom path
	got, err := GetTemplate("")
	if err != nil {
		t.Fatalf("GetTemplate(\"\") error: %v", err)
	}
	if got != DefaultTemplate {
		t.Error("expected default template")
	}

	// Custom template from file
	path := filepath.Join(t.TempDir(), "custom.md")
	if err := os.WriteFile(path, []byte("custom {{session}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = GetTemplate(path)
	if err != nil {
		t.Fatalf("GetTemplate(custom) error: %v", err)
	}
	if got != "custom {{session}}" {
		t.Errorf("GetTemplate(custom) = %q", got)
	}

	// Missing file is an error
	if _, err := GetTemplate(filepath.Join(t.TempDir(), "absent.md")); err == nil {
		t.Error("expected error for missing template file")
	}
}

func TestBuildSystemPromptDefaults(t *testing.T) {
	prompt, err := BuildSystemPrompt(context.Background(), BuildConfig{
		SessionName: "demo",
		WorkDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("BuildSystemPrompt() error: %v", err)
	}

	if !strings.Contains(prompt, "Session: demo") {
		t.Errorf("prompt missing session name:\n%s", prompt)
	}
	if strings.Contains(prompt, "{{") {
		t.Errorf("prompt contains unexpanded placeholders:\n%s", prompt)
	}
	if strings.Contains(prompt, "## Repository") {
		t.Error("non-git workdir should not produce a repository section")
	}
	if !strings.HasSuffix(prompt, "\n") {
		t.Error("prompt should end with a newline")
	}
}

func TestBuildSystemPromptExtra(t *testing.T) {
	prompt, err := BuildSystemPrompt(context.Background(), BuildConfig{
		SessionName: "demo",
		Extra:       "Always answer in French.",
	})
	if err != nil {
		t.Fatalf("BuildSystemPrompt() error: %v", err)
	}
	if !strings.Contains(prompt, "Always answer in French.") {
		t.Errorf("prompt missing extra instructions:\n%s", prompt)
	}
}

func TestFormatHistory(t *testing.T) {
	state := session.NewState("demo")
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	addRun := func(id, task, finalText string, exitCode int, stopReason string, done bool, offset time.Duration) {
		state.Runs[id] = &session.Run{
			ID:         id,
			Task:       task,
			StartedAt:  base.Add(offset),
			Done:       done,
			ExitCode:   exitCode,
			StopReason: stopReason,
			FinalText:  finalText,
		}
	}
	addRun("r1", "first task", "did the thing", 0, "end_turn", true, 0)
	addRun("r2", "second task", "", 1, "", true, time.Minute)
	addRun("r3", "third task", "", 0, "aborted", true, 2*time.Minute)

	got := formatHistory(state)

	for _, want := range []string{
		"## Previous Runs",
		"- [done] first task",
		"did the thing",
		"- [failed (exit 1)] second task",
		"- [aborted] third task",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("history missing %q:\n%s", want, got)
		}
	}

	// Runs appear oldest first
	if strings.Index(got, "first task") > strings.Index(got, "third task") {
		t.Error("expected runs ordered by start time")
	}
}

func TestFormatHistoryCapsRuns(t *testing.T) {
	state := session.NewState("demo")
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < historyRuns+3; i++ {
		id := string(rune('a' + i))
		state.Runs[id] = &session.Run{
			ID:        id,
			Task:      "task " + id,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Done:      true,
		}
	}

	got := formatHistory(state)
	if strings.Contains(got, "task a") {
		t.Error("oldest run should be dropped from the prompt")
	}
	if !strings.Contains(got, "task "+string(rune('a'+historyRuns+2))) {
		t.Error("newest run should be kept")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  short  ", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	long := strings.Repeat("x", 50)
	if got := truncate(long, 10); got != long[:10]+"..." {
		t.Errorf("truncate() = %q", got)
	}
}
