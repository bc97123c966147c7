package agent

import "os/exec"

// Executor wraps os/exec functionality, enabling easier testing and mocking
// of command execution.
type Executor interface {
	Run(cmd *exec.Cmd) error
	Output(cmd *exec.Cmd) ([]byte, error)
}

type execExecutor struct{}

// MakeExecutor returns the Executor that shells out to the real os/exec
// package.
func MakeExecutor() Executor {
	return execExecutor{}
}

func (execExecutor) Run(cmd *exec.Cmd) error                 { return cmd.Run() }
func (execExecutor) Output(cmd *exec.Cmd) ([]byte, error)     { return cmd.Output() }
