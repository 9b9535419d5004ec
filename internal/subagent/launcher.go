package subagent

import (
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/mark3labs/sidekick/internal/logger"
)

// process is a handle over one spawned agent. When startErr is set the
// process never started: the streams are empty and wait reports exit code 1,
// so spawn failures flow through the same finalization path as real exits.
type process struct {
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	startErr error
}

// launch starts bin with args in dir and wires up its output pipes. It never
// returns an error; a failed start is carried inside the handle.
func launch(bin string, args []string, dir string) *process {
	p := &process{}

	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	// Set up process group for clean killability. Agents spawn their own
	// tool subprocesses; those inherit the output pipes and would keep the
	// stream readers from reaching EOF if they outlived the agent.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.startErr = err
		return p
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		p.startErr = err
		return p
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		p.startErr = err
		return p
	}

	logger.Debug("subagent: started %s (pid %d) in %s", bin, cmd.Process.Pid, dir)
	p.cmd = cmd
	p.stdout = stdout
	p.stderr = stderr
	return p
}

// started reports whether the child actually exists.
func (p *process) started() bool {
	return p.startErr == nil
}

// signal delivers sig to the child's process group, so the agent's own
// subprocesses receive it too. It is safe to call on a handle that never
// started or whose child already exited.
func (p *process) signal(sig syscall.Signal) {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-p.cmd.Process.Pid, sig); err != nil {
		// Group already gone or never created; fall back to the child.
		if err := p.cmd.Process.Signal(sig); err != nil {
			logger.Debug("subagent: signal %v: %v", sig, err)
		}
	}
}

// terminate asks the child to exit gracefully.
func (p *process) terminate() { p.signal(syscall.SIGTERM) }

// kill forcibly ends the child.
func (p *process) kill() { p.signal(syscall.SIGKILL) }

// wait reaps the child and maps its exit state onto an integer code. It must
// be called after both stream readers have drained. A child killed by a
// signal carries no exit code of its own and is reported as 0; abort
// detection uses the stop reason, not the code.
func (p *process) wait() (int, error) {
	if !p.started() {
		return 1, p.startErr
	}
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return 0, nil // killed by signal
	}
	return 1, err
}
