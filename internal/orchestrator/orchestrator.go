// Package orchestrator wires the embedded NATS event store, the subagent
// runner, and the MCP tool server into one lifecycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ierr "github.com/mark3labs/sidekick/internal/errors"
	"github.com/mark3labs/sidekick/internal/git"
	"github.com/mark3labs/sidekick/internal/hooks"
	"github.com/mark3labs/sidekick/internal/importer"
	"github.com/mark3labs/sidekick/internal/logger"
	"github.com/mark3labs/sidekick/internal/mcpserver"
	"github.com/mark3labs/sidekick/internal/nats"
	"github.com/mark3labs/sidekick/internal/session"
	"github.com/mark3labs/sidekick/internal/subagent"
	"github.com/mark3labs/sidekick/internal/webtool"
	natsserver "github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Config holds configuration for the orchestrator.
type Config struct {
	SessionName    string   // Name of the session
	DataDir        string   // Data directory for NATS storage
	WorkDir        string   // Working directory for the agent
	AgentBin       string   // Agent executable to spawn
	Model          string   // Default model (catalog id, alias, or provider/id)
	Tools          []string // Tool allowlist passed to the agent (empty = agent default)
	TimeoutSeconds int      // Per-run timeout (0 = no deadline)
	SearchEndpoint string   // Web search API endpoint (optional)
	SearchAPIKey   string   // Web search API key (optional)
	OnProgress     func(subagent.Snapshot)
}

// Orchestrator manages the embedded NATS server, session store, subagent
// runner, and MCP tool server.
type Orchestrator struct {
	cfg     Config
	ns      *natsserver.Server
	nc      *natsgo.Conn
	store   *session.Store
	runner  *subagent.Runner
	mcp     *mcpserver.Server
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// New creates a new Orchestrator with the given configuration.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.DataDir == "" {
		cfg.DataDir = ".sidekick"
	}
	if cfg.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		cfg.WorkDir = wd
	}
	if cfg.SessionName == "" {
		cfg.SessionName = filepath.Base(cfg.WorkDir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start initializes all components: NATS, JetStream, the session store, the
// subagent runner, and the MCP tool server.
func (o *Orchestrator) Start() error {
	logger.Info("Starting orchestrator for session '%s'", o.cfg.SessionName)

	logger.Debug("Starting embedded NATS")
	if err := o.startNATS(); err != nil {
		logger.Error("Failed to start NATS: %v", err)
		return fmt.Errorf("failed to start NATS: %w", err)
	}

	logger.Debug("Setting up JetStream")
	if err := o.setupJetStream(); err != nil {
		logger.Error("Failed to setup JetStream: %v", err)
		return fmt.Errorf("failed to setup JetStream: %w", err)
	}

	var timeout time.Duration
	if o.cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(o.cfg.TimeoutSeconds) * time.Second
	}
	o.runner = subagent.NewRunner(subagent.RunnerConfig{
		AgentBin:   o.cfg.AgentBin,
		Timeout:    timeout,
		OnProgress: o.cfg.OnProgress,
	})

	var search webtool.SearchProvider = webtool.StubSearchProvider{}
	if o.cfg.SearchEndpoint != "" {
		search = &webtool.HTTPSearchProvider{
			Endpoint: o.cfg.SearchEndpoint,
			APIKey:   o.cfg.SearchAPIKey,
		}
	}

	o.mcp = mcpserver.New(mcpserver.Config{
		Store:    o.store,
		Session:  o.cfg.SessionName,
		WorkDir:  o.cfg.WorkDir,
		Runner:   o.runner,
		Search:   search,
		Importer: importer.New(o.store),
	})
	port, err := o.mcp.Start(o.ctx)
	if err != nil {
		logger.Error("Failed to start MCP server: %v", err)
		return fmt.Errorf("failed to start MCP server: %w", err)
	}
	logger.Info("MCP tool server listening on port %d", port)

	logger.Info("Orchestrator started successfully")
	return nil
}

// MCPURL returns the MCP endpoint URL. Valid after Start.
func (o *Orchestrator) MCPURL() string {
	if o.mcp == nil {
		return ""
	}
	return o.mcp.URL()
}

// Store returns the session store. Valid after Start.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// RunTask executes one subagent run: pre_run hook, spawn, event recording,
// post_run hook. The run outcome is always returned as a Result; an error
// means the run could not even be attempted.
func (o *Orchestrator) RunTask(ctx context.Context, task, systemPrompt string) (*subagent.Result, error) {
	hookCfg, err := hooks.LoadConfig(o.cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	run, err := o.store.RunStart(ctx, o.cfg.SessionName, session.RunStartParams{
		Task:  task,
		Model: o.cfg.Model,
		Git:   gitSummary(o.cfg.WorkDir),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	vars := hooks.Variables{Task: task, RunID: run.ID, Session: o.cfg.SessionName}
	if hookCfg != nil {
		if out, err := hooks.Execute(ctx, hookCfg.Hooks.PreRun, o.cfg.WorkDir, vars); err != nil {
			return nil, err
		} else if out != "" {
			logger.Debug("pre_run hook output: %s", out)
		}
	}

	var result *subagent.Result
	runErr := ierr.Recover(func() error {
		var err error
		result, err = o.runner.Run(ctx, subagent.Request{
			WorkDir:      o.cfg.WorkDir,
			Task:         task,
			SystemPrompt: systemPrompt,
			Model:        o.cfg.Model,
			Tools:        o.cfg.Tools,
		})
		return err
	})
	if runErr != nil {
		var panicErr *ierr.PanicError
		if errors.As(runErr, &panicErr) {
			logger.Error("Run panicked with stack trace: %s", panicErr.StackTrace)
		}
		return nil, runErr
	}

	// Record the outcome even when the caller's context is already gone.
	finishCtx := context.WithoutCancel(ctx)
	err = o.store.RunFinish(finishCtx, o.cfg.SessionName, session.RunFinishParams{
		RunID:      run.ID,
		ExitCode:   result.ExitCode,
		StopReason: result.StopReason,
		Error:      result.ErrorMessage,
		FinalText:  result.FinalText,
	})
	if err != nil {
		logger.Warn("Failed to record run finish: %v", err)
	}
	if result.FinalText != "" {
		err = o.store.MessageAdd(finishCtx, o.cfg.SessionName, session.MessageAddParams{
			RunID: run.ID,
			Role:  "assistant",
			Text:  result.FinalText,
		})
		if err != nil {
			logger.Warn("Failed to record transcript message: %v", err)
		}
	}

	if hookCfg != nil {
		if out, err := hooks.Execute(finishCtx, hookCfg.Hooks.PostRun, o.cfg.WorkDir, vars); err == nil && out != "" {
			logger.Debug("post_run hook output: %s", out)
		}
	}

	return result, nil
}

// Stop gracefully shuts down all components.
// It collects errors from each component and returns a combined error if any fail.
// Multiple calls to Stop() are safe and idempotent.
func (o *Orchestrator) Stop() error {
	if o.stopped {
		return nil
	}
	o.stopped = true

	logger.Info("Stopping orchestrator for session '%s'", o.cfg.SessionName)
	multiErr := &ierr.MultiError{}

	if o.cancel != nil {
		o.cancel()
	}

	if o.mcp != nil {
		logger.Debug("Stopping MCP server")
		if err := o.mcp.Stop(); err != nil {
			logger.Error("MCP server stop failed: %v", err)
			multiErr.Append(fmt.Errorf("MCP server stop failed: %w", err))
		}
		o.mcp = nil
	}

	logger.Debug("Shutting down NATS")
	if err := nats.Shutdown(o.nc, o.ns); err != nil {
		logger.Error("NATS shutdown failed: %v", err)
		multiErr.Append(fmt.Errorf("NATS shutdown failed: %w", err))
	}
	o.nc = nil
	o.ns = nil

	logger.Info("Orchestrator stopped")
	return multiErr.ErrorOrNil()
}

// gitSummary describes the repository state for the run record, or ""
// when workDir is not inside a work tree.
func gitSummary(workDir string) string {
	info, err := git.GetInfo(workDir)
	if err != nil || info == nil {
		return ""
	}
	summary := info.Branch + "@" + info.Hash
	if info.Dirty {
		summary += ", dirty"
	}
	return summary
}

// startNATS starts the embedded server and opens the in-process connection.
func (o *Orchestrator) startNATS() error {
	dataDir := filepath.Join(o.cfg.DataDir, "nats")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create NATS data directory: %w", err)
	}

	ns, err := nats.StartEmbeddedNATS(dataDir)
	if err != nil {
		return fmt.Errorf("failed to start NATS server: %w", err)
	}
	o.ns = ns

	nc, err := nats.ConnectInProcess(ns)
	if err != nil {
		ns.Shutdown()
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	o.nc = nc
	return nil
}

// setupJetStream creates the JetStream stream and initializes the session store.
func (o *Orchestrator) setupJetStream() error {
	js, err := jetstream.New(o.nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := nats.SetupStream(o.ctx, js)
	if err != nil {
		return fmt.Errorf("failed to setup stream: %w", err)
	}

	o.store = session.NewStore(js, stream)
	return nil
}
