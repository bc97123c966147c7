package agent

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/orchestrace/control-plane/log"
)

// ProcessSpec describes how to spawn one agent's runtime.
type ProcessSpec struct {
	AgentID          string
	AgentType        string
	AgentName        string
	Command          string
	Args             []string
	WorkingDirectory string
	LogDirectory     string
}

func (s ProcessSpec) env() []string {
	return append(os.Environ(),
		"AGENT_ID="+s.AgentID,
		"AGENT_TYPE="+s.AgentType,
		"AGENT_NAME="+s.AgentName,
		"WORKING_DIR="+s.WorkingDirectory,
		"LOG_DIR="+s.LogDirectory,
	)
}

// Process supervises one spawned agent's OS process over a pty, grounded on
// session/tmux/tmux.go's pty-backed lifecycle: creack/pty for the terminal,
// SIGTERM-then-SIGKILL-on-timeout for shutdown.
type Process struct {
	mu      sync.Mutex
	spec    ProcessSpec
	cmd     *exec.Cmd
	ptmx    *os.File
	exec    Executor
	exited  chan struct{}
	exitErr error
}

// NewProcess constructs a Process using the real OS executor.
func NewProcess(spec ProcessSpec) *Process {
	return &Process{spec: spec, exec: MakeExecutor()}
}

// Start spawns the agent's process attached to a pty. The returned pty file
// is available via Output after Start succeeds.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := exec.Command(p.spec.Command, p.spec.Args...)
	cmd.Dir = p.spec.WorkingDirectory
	cmd.Env = p.spec.env()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("agent %s: failed to start process: %w", p.spec.AgentID, err)
	}

	p.cmd = cmd
	p.ptmx = ptmx
	p.exited = make(chan struct{})

	go p.wait()

	return nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	close(p.exited)
}

// Output reads whatever the pty has buffered since the last call. Once the
// process has exited and no more output remains, the pty read returns an
// error.
func (p *Process) Output(buf []byte) (int, error) {
	p.mu.Lock()
	ptmx := p.ptmx
	p.mu.Unlock()
	if ptmx == nil {
		return 0, errors.New("process not started")
	}
	return ptmx.Read(buf)
}

// Wait blocks until the process exits, returning its exit error if any.
func (p *Process) Wait() error {
	<-p.exited
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Exited reports whether the process has already exited, non-blocking.
func (p *Process) Exited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// Stop sends SIGTERM, then SIGKILL if the process has not exited within
// timeout.
func (p *Process) Stop(timeout time.Duration) error {
	p.mu.Lock()
	cmd := p.cmd
	ptmx := p.ptmx
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	var errs []error
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		errs = append(errs, fmt.Errorf("sigterm: %w", err))
	}

	select {
	case <-p.exited:
	case <-time.After(timeout):
		log.WarningLog.Printf("agent %s: did not exit within %s, sending SIGKILL", p.spec.AgentID, timeout)
		if err := cmd.Process.Kill(); err != nil {
			errs = append(errs, fmt.Errorf("sigkill: %w", err))
		}
		<-p.exited
	}

	if ptmx != nil {
		if err := ptmx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing pty: %w", err))
		}
	}

	return errors.Join(errs...)
}
