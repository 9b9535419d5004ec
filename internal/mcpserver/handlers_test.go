package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/sidekick/internal/importer"
	"github.com/mark3labs/sidekick/internal/nats"
	"github.com/mark3labs/sidekick/internal/session"
	"github.com/mark3labs/sidekick/internal/subagent"
	"github.com/mark3labs/sidekick/internal/webtool"
)

// setupTestServer creates a server with a JetStream-backed test store.
func setupTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	ctx := context.Background()

	ns, err := nats.StartEmbeddedNATS(t.TempDir())
	if err != nil {
		t.Fatalf("failed to start NATS: %v", err)
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.ConnectInProcess(ns)
	if err != nil {
		t.Fatalf("failed to connect to NATS: %v", err)
	}
	t.Cleanup(nc.Close)

	js, err := nats.CreateJetStream(nc)
	if err != nil {
		t.Fatalf("failed to create JetStream: %v", err)
	}
	stream, err := nats.SetupStream(ctx, js)
	if err != nil {
		t.Fatalf("failed to setup stream: %v", err)
	}

	cfg.Store = session.NewStore(js, stream)
	if cfg.Session == "" {
		cfg.Session = "test-session"
	}
	if cfg.Importer == nil {
		cfg.Importer = importer.New(cfg.Store)
	}
	return New(cfg)
}

// extractText extracts text from CallToolResult.Content[0]
func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if textContent, ok := result.Content[0].(mcp.TextContent); ok {
		return textContent.Text
	}
	return ""
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// fakeAgentBin writes a shell script emitting a fixed event stream.
func fakeAgentBin(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake agent requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-agent")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write fake agent: %v", err)
	}
	return path
}

func TestHandleSubagentRun_Success(t *testing.T) {
	bin := fakeAgentBin(t, `
echo '{"type":"message_completed","message":{"role":"assistant","parts":[{"type":"tool","tool":"bash","id":"c1"},{"type":"text","text":"all done"}],"stopReason":"end_turn"}}'
exit 0
`)
	srv := setupTestServer(t, Config{
		WorkDir: t.TempDir(),
		Runner:  subagent.NewRunner(subagent.RunnerConfig{AgentBin: bin}),
	})

	result, err := srv.handleSubagentRun(context.Background(), callRequest("subagent_run", map[string]any{
		"task": "do the thing",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	text := extractText(result)
	if !strings.Contains(text, "all done") {
		t.Errorf("expected final text in output, got %q", text)
	}
	if !strings.Contains(text, "Tool calls (1)") {
		t.Errorf("expected tool call listing, got %q", text)
	}

	// The run is recorded in the session history.
	state, err := srv.store.LoadState(context.Background(), srv.sessName)
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if len(state.Runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(state.Runs))
	}
	for _, run := range state.Runs {
		if !run.Done {
			t.Error("expected run marked done")
		}
		if run.FinalText != "all done" {
			t.Errorf("expected final text recorded, got %q", run.FinalText)
		}
		if run.StopReason != "end_turn" {
			t.Errorf("expected stop reason recorded, got %q", run.StopReason)
		}
	}
}

func TestHandleSubagentRun_Failure(t *testing.T) {
	bin := fakeAgentBin(t, `
echo 'agent exploded' >&2
exit 1
`)
	srv := setupTestServer(t, Config{
		WorkDir: t.TempDir(),
		Runner:  subagent.NewRunner(subagent.RunnerConfig{AgentBin: bin}),
	})

	result, err := srv.handleSubagentRun(context.Background(), callRequest("subagent_run", map[string]any{
		"task": "doomed task",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	text := extractText(result)
	if !strings.Contains(text, "Run failed (exit 1)") {
		t.Errorf("expected failure marker, got %q", text)
	}
	if !strings.Contains(text, "agent exploded") {
		t.Errorf("expected stderr summary, got %q", text)
	}
}

func TestHandleSubagentRun_MissingTask(t *testing.T) {
	srv := setupTestServer(t, Config{
		Runner: subagent.NewRunner(subagent.RunnerConfig{AgentBin: "true"}),
	})

	result, err := srv.handleSubagentRun(context.Background(), callRequest("subagent_run", map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !strings.Contains(extractText(result), "error:") {
		t.Errorf("expected error text, got %q", extractText(result))
	}
}

func TestHandleWebSearch_StubProvider(t *testing.T) {
	srv := setupTestServer(t, Config{})

	result, err := srv.handleWebSearch(context.Background(), callRequest("web_search", map[string]any{
		"query": "golang",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	text := extractText(result)
	if !strings.Contains(text, "error:") || !strings.Contains(text, "not configured") {
		t.Errorf("expected stub provider error, got %q", text)
	}
}

type staticProvider struct{ results []webtool.SearchResult }

func (p staticProvider) Search(context.Context, string, int) ([]webtool.SearchResult, error) {
	return p.results, nil
}

func TestHandleWebSearch_Filters(t *testing.T) {
	srv := setupTestServer(t, Config{
		Search: staticProvider{results: []webtool.SearchResult{
			{Title: "Keep", URL: "https://docs.example.com/x"},
			{Title: "Drop", URL: "https://blog.other.org/y"},
		}},
	})

	result, err := srv.handleWebSearch(context.Background(), callRequest("web_search", map[string]any{
		"query":           "anything",
		"allowed_domains": []any{"example.com"},
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	text := extractText(result)
	if !strings.Contains(text, "Keep") {
		t.Errorf("expected allowed result, got %q", text)
	}
	if strings.Contains(text, "Drop") {
		t.Errorf("expected filtered result removed, got %q", text)
	}
}

func TestHandleWebFetch_MissingURL(t *testing.T) {
	srv := setupTestServer(t, Config{})

	result, err := srv.handleWebFetch(context.Background(), callRequest("web_fetch", map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !strings.Contains(extractText(result), "error:") {
		t.Errorf("expected error text, got %q", extractText(result))
	}
}

func TestHandleModelLookup(t *testing.T) {
	srv := setupTestServer(t, Config{})

	result, err := srv.handleModelLookup(context.Background(), callRequest("model_lookup", map[string]any{
		"name": "sonnet",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	text := extractText(result)
	if !strings.Contains(text, "claude-sonnet-4-5") {
		t.Errorf("expected catalog entry, got %q", text)
	}

	result, err = srv.handleModelLookup(context.Background(), callRequest("model_lookup", map[string]any{
		"name": "made-up-model",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !strings.Contains(extractText(result), "error: unknown model") {
		t.Errorf("expected unknown model error, got %q", extractText(result))
	}

	// No name lists the catalog.
	result, err = srv.handleModelLookup(context.Background(), callRequest("model_lookup", nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	text = extractText(result)
	if !strings.Contains(text, "anthropic/") || !strings.Contains(text, "openai/") {
		t.Errorf("expected full catalog listing, got %q", text)
	}
}

func TestServerStartStop(t *testing.T) {
	srv := setupTestServer(t, Config{})

	port, err := srv.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if port == 0 {
		t.Error("expected non-zero port")
	}
	if !strings.Contains(srv.URL(), "/mcp") {
		t.Errorf("unexpected URL %q", srv.URL())
	}

	// Double start is rejected; stop is idempotent.
	if _, err := srv.Start(context.Background()); err == nil {
		t.Error("expected error on double start")
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}
