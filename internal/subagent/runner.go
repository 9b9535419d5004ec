package subagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/sidekick/internal/logger"
)

const (
	// defaultGracePeriod is how long a cancelled child gets to exit on its
	// own before it is forcibly killed.
	defaultGracePeriod = 2 * time.Second

	readChunkSize = 32 * 1024
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// AgentBin is the agent executable to spawn (e.g., "opencode").
	AgentBin string
	// OnProgress, if set, is called after every observable state change.
	// Calls are delivered from a single goroutine, in order, and stop
	// before Run returns.
	OnProgress func(Snapshot)
	// Timeout bounds the whole run; zero means no deadline beyond the
	// caller's context.
	Timeout time.Duration
	// GracePeriod overrides the termination grace window, for tests.
	GracePeriod time.Duration
}

// Runner spawns agent processes and reduces their event streams into run
// results. A Runner is safe for concurrent use; each Run is independent.
type Runner struct {
	agentBin   string
	onProgress func(Snapshot)
	timeout    time.Duration
	grace      time.Duration
}

// NewRunner creates a Runner from cfg, applying defaults for anything unset.
func NewRunner(cfg RunnerConfig) *Runner {
	bin := cfg.AgentBin
	if bin == "" {
		bin = "opencode"
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	return &Runner{
		agentBin:   bin,
		onProgress: cfg.OnProgress,
		timeout:    cfg.Timeout,
		grace:      grace,
	}
}

// Run executes one subagent task to completion. It always produces a Result:
// spawn failures, agent errors, and cancellation all resolve into the result
// rather than escaping as returned errors. The returned error is non-nil
// only for an invalid request.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, errors.New("subagent: task is required")
	}

	args, cleanup, err := r.buildArgs(req)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	logger.Info("subagent: running task in %s", req.WorkDir)
	proc := launch(r.agentBin, args, req.WorkDir)
	if !proc.started() {
		logger.Error("subagent: failed to start %s: %v", r.agentBin, proc.startErr)
		return &Result{
			ExitCode:     1,
			ErrorMessage: fmt.Sprintf("failed to start agent: %v", proc.startErr),
		}, nil
	}

	red := newReducer()
	var stderrBuf strings.Builder
	var aborted atomic.Bool

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.consumeStdout(proc.stdout, red)
	}()
	go func() {
		defer wg.Done()
		io.Copy(&stderrBuf, proc.stderr)
	}()

	// The watcher escalates from SIGTERM to SIGKILL if the child ignores
	// cancellation; done is closed once the child has been reaped, which
	// stops the watcher on the normal path.
	done := make(chan struct{})
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		aborted.Store(true)
		logger.Warn("subagent: run cancelled, terminating agent")
		proc.terminate()
		select {
		case <-done:
		case <-time.After(r.grace):
			logger.Warn("subagent: agent ignored termination, killing")
			proc.kill()
		}
	}()

	wg.Wait()
	code, waitErr := proc.wait()
	close(done)

	result := &Result{
		ExitCode:     code,
		Stderr:       strings.TrimSpace(stderrBuf.String()),
		Messages:     red.messages,
		FinalText:    red.finalText,
		ToolCalls:    red.toolCalls,
		StopReason:   red.stopReason,
		ErrorMessage: red.errorMessage,
		Model:        red.model,
	}
	if aborted.Load() {
		result.StopReason = StopReasonAborted
	}
	if waitErr != nil && result.ErrorMessage == "" {
		result.ErrorMessage = waitErr.Error()
	}

	logger.Info("subagent: run finished (exit %d, stop %q, %d tool calls)",
		result.ExitCode, result.StopReason, len(result.ToolCalls))
	return result, nil
}

// consumeStdout reads raw chunks, frames them into lines, decodes events,
// and applies them to the reducer, notifying the progress callback on every
// change. Reads are chunk-based deliberately: the framer, not the pipe,
// decides line boundaries.
func (r *Runner) consumeStdout(stdout io.Reader, red *reducer) {
	framer := &lineFramer{}
	buf := make([]byte, readChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			for _, line := range framer.feed(string(buf[:n])) {
				r.applyLine(line, red)
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Debug("subagent: stdout read: %v", err)
			}
			break
		}
	}
	if line, ok := framer.flush(); ok {
		r.applyLine(line, red)
	}
}

func (r *Runner) applyLine(line string, red *reducer) {
	msg, ok := decodeEvent(line)
	if !ok {
		return
	}
	if red.apply(*msg) && r.onProgress != nil {
		r.onProgress(red.snapshot())
	}
}

// buildArgs assembles the agent command line. When the request carries a
// system prompt it is written to a temp file passed by path; the returned
// cleanup removes it and is safe to call when no file was created.
func (r *Runner) buildArgs(req Request) ([]string, func(), error) {
	args := []string{"run", "--format", "json"}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if len(req.Tools) > 0 {
		args = append(args, "--tools", strings.Join(req.Tools, ","))
	}

	cleanup := func() {}
	if req.SystemPrompt != "" {
		f, err := os.CreateTemp("", "sidekick-prompt-*.md")
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create prompt file: %w", err)
		}
		path := f.Name()
		if _, err := f.WriteString(req.SystemPrompt); err != nil {
			f.Close()
			os.Remove(path)
			return nil, cleanup, fmt.Errorf("failed to write prompt file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return nil, cleanup, fmt.Errorf("failed to write prompt file: %w", err)
		}
		cleanup = func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Debug("subagent: remove prompt file: %v", err)
			}
		}
		args = append(args, "--system-prompt-file", path)
	}

	args = append(args, req.Task)
	return args, cleanup, nil
}
