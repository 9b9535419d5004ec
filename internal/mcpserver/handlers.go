package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/sidekick/internal/catalog"
	"github.com/mark3labs/sidekick/internal/logger"
	"github.com/mark3labs/sidekick/internal/session"
	"github.com/mark3labs/sidekick/internal/subagent"
	"github.com/mark3labs/sidekick/internal/webtool"
)

// registerTools wires every sidekick tool into the MCP server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("subagent_run",
			mcp.WithDescription("Spawn a subagent to work on a task and return its final output"),
			mcp.WithString("task", mcp.Required(),
				mcp.Description("Natural language task for the subagent"),
			),
			mcp.WithString("model",
				mcp.Description("Model to use, by catalog id or alias (e.g. sonnet)"),
			),
			mcp.WithString("system_prompt",
				mcp.Description("Supplementary system prompt for the subagent"),
			),
			mcp.WithArray("tools",
				mcp.Description("Restrict the subagent to these tool names"),
				mcp.Items(map[string]any{"type": "string"}),
			),
			mcp.WithNumber("timeout_seconds",
				mcp.Description("Abort the run after this many seconds"),
			),
		),
		s.handleSubagentRun,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("web_search",
			mcp.WithDescription("Search the web and return result blocks with titles, URLs, and snippets"),
			mcp.WithString("query", mcp.Required(),
				mcp.Description("The search query"),
			),
			mcp.WithArray("allowed_domains",
				mcp.Description("Only include results from these domains"),
				mcp.Items(map[string]any{"type": "string"}),
			),
			mcp.WithArray("blocked_domains",
				mcp.Description("Exclude results from these domains"),
				mcp.Items(map[string]any{"type": "string"}),
			),
		),
		s.handleWebSearch,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("web_fetch",
			mcp.WithDescription("Fetch a URL and return its readable text content"),
			mcp.WithString("url", mcp.Required(),
				mcp.Description("The URL to fetch"),
			),
		),
		s.handleWebFetch,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("session_import",
			mcp.WithDescription("Import a shared agent transcript from an export URL into the local session history"),
			mcp.WithString("url", mcp.Required(),
				mcp.Description("The export URL to import"),
			),
		),
		s.handleSessionImport,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("model_lookup",
			mcp.WithDescription("Look up a model in the catalog by id or alias, or list all known models"),
			mcp.WithString("name",
				mcp.Description("Model id or alias; omit to list the full catalog"),
			),
		),
		s.handleModelLookup,
	)
}

// handleSubagentRun spawns a subagent, records the run in the session
// history, and returns the run outcome as tool text.
func (s *Server) handleSubagentRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	task, ok := args["task"].(string)
	if !ok || strings.TrimSpace(task) == "" {
		return mcp.NewToolResultText("error: missing or empty 'task' parameter"), nil
	}
	if s.runner == nil {
		return mcp.NewToolResultText("error: subagent runner not configured"), nil
	}

	req := subagent.Request{
		WorkDir: s.workDir,
		Task:    task,
	}
	if model, ok := args["model"].(string); ok && model != "" {
		// Resolve catalog aliases to the provider-qualified reference.
		if m := catalog.Lookup(model); m != nil {
			req.Model = m.Ref()
		} else {
			req.Model = model
		}
	}
	if prompt, ok := args["system_prompt"].(string); ok {
		req.SystemPrompt = prompt
	}
	if toolsRaw, ok := args["tools"].([]any); ok {
		for _, tr := range toolsRaw {
			if name, ok := tr.(string); ok && name != "" {
				req.Tools = append(req.Tools, name)
			}
		}
	}
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	var run *session.Run
	if s.store != nil {
		var err error
		run, err = s.store.RunStart(ctx, s.sessName, session.RunStartParams{Task: task, Model: req.Model})
		if err != nil {
			logger.Warn("Failed to record run start: %v", err)
		}
	}

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}

	if s.store != nil && run != nil {
		finishErr := s.store.RunFinish(context.WithoutCancel(ctx), s.sessName, session.RunFinishParams{
			RunID:      run.ID,
			ExitCode:   result.ExitCode,
			StopReason: result.StopReason,
			Error:      result.ErrorMessage,
			FinalText:  result.FinalText,
		})
		if finishErr != nil {
			logger.Warn("Failed to record run finish: %v", finishErr)
		}
	}

	return mcp.NewToolResultText(formatRunResult(result)), nil
}

// formatRunResult renders a run outcome for the host agent. Failures carry
// the summary so the host always has something actionable.
func formatRunResult(result *subagent.Result) string {
	var b strings.Builder
	if result.ExitCode == 0 && !result.Aborted() {
		b.WriteString(result.Summary())
	} else if result.Aborted() {
		fmt.Fprintf(&b, "Run aborted.\n%s", result.Summary())
	} else {
		fmt.Fprintf(&b, "Run failed (exit %d).\n%s", result.ExitCode, result.Summary())
	}
	if len(result.ToolCalls) > 0 {
		fmt.Fprintf(&b, "\n\nTool calls (%d):", len(result.ToolCalls))
		for _, tc := range result.ToolCalls {
			fmt.Fprintf(&b, "\n  %s", tc.Name)
		}
	}
	return b.String()
}

// handleWebSearch performs a web search with optional domain filters.
func (s *Server) handleWebSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultText("error: missing or empty 'query' parameter"), nil
	}

	opts := webtool.SearchOptions{}
	if domains, ok := args["allowed_domains"].([]any); ok {
		for _, d := range domains {
			if str, ok := d.(string); ok {
				opts.AllowedDomains = append(opts.AllowedDomains, str)
			}
		}
	}
	if domains, ok := args["blocked_domains"].([]any); ok {
		for _, d := range domains {
			if str, ok := d.(string); ok {
				opts.BlockedDomains = append(opts.BlockedDomains, str)
			}
		}
	}

	results, err := webtool.Search(ctx, s.search, query, opts)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}
	return mcp.NewToolResultText(webtool.FormatResults(query, results)), nil
}

// handleWebFetch downloads a URL and returns its readable text.
func (s *Server) handleWebFetch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	rawURL, ok := args["url"].(string)
	if !ok || rawURL == "" {
		return mcp.NewToolResultText("error: missing or empty 'url' parameter"), nil
	}

	content, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}
	return mcp.NewToolResultText(content), nil
}

// handleSessionImport imports a shared transcript into the event log.
func (s *Server) handleSessionImport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	rawURL, ok := args["url"].(string)
	if !ok || rawURL == "" {
		return mcp.NewToolResultText("error: missing or empty 'url' parameter"), nil
	}
	if s.importer == nil {
		return mcp.NewToolResultText("error: importer not configured"), nil
	}

	result, err := s.importer.Import(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Imported %d message(s) into session %q (title: %s)",
		result.MessageCount, result.Session, result.Title,
	)), nil
}

// handleModelLookup resolves one model or dumps the catalog.
func (s *Server) handleModelLookup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	name := ""
	if args != nil {
		name, _ = args["name"].(string)
	}

	if name != "" {
		model := catalog.Lookup(name)
		if model == nil {
			return mcp.NewToolResultText(fmt.Sprintf("error: unknown model %q", name)), nil
		}
		out, err := json.MarshalIndent(model, "", "  ")
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("error: failed to marshal model: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}

	var lines []string
	for _, m := range catalog.List() {
		lines = append(lines, fmt.Sprintf("%s (%s) aliases: %s",
			m.Ref(), m.DisplayName, strings.Join(m.Aliases, ", ")))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}
