package agent

import (
	"time"

	"github.com/orchestrace/control-plane/capability"
)

// Status is an Agent's lifecycle state (§3).
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusIdle          Status = "idle"
	StatusBusy          Status = "busy"
	StatusOffline       Status = "offline"
	StatusError         Status = "error"
	StatusTerminating   Status = "terminating"
	StatusTerminated    Status = "terminated"
)

// ErrorRecord is one entry of an agent's error history (§7).
type ErrorRecord struct {
	Timestamp time.Time
	Message   string
}

// Agent is the runtime entity the manager tracks: a template instantiation
// bound to a spawned process, its lifecycle status, and accumulated
// execution/error history.
type Agent struct {
	ID               string
	TemplateType     string
	Name             string
	Capabilities     capability.Capabilities
	AutonomyLevel    float64
	Status           Status
	CreatedAt        time.Time
	CurrentTaskCount int
	TasksCompleted   int64
	TasksFailed      int64
	RecentExecTimes  []time.Duration
	Health           float64
	Errors           []ErrorRecord
	RestartAttempts  int

	proc *Process
}

// snapshot is a read-only copy safe to hand to callers outside the manager
// lock (§5's "cross-component reads go through read-only copies").
func (a *Agent) snapshot() Agent {
	cp := *a
	cp.proc = nil
	cp.Errors = append([]ErrorRecord(nil), a.Errors...)
	cp.RecentExecTimes = append([]time.Duration(nil), a.RecentExecTimes...)
	return cp
}

// State is the serializable view persisted to the external memory store.
type State struct {
	ID            string
	TemplateType  string
	Name          string
	Capabilities  capability.Capabilities
	AutonomyLevel float64
	Status        Status
	CreatedAt     time.Time
}

// Store is the narrow persistence contract the manager depends on — an
// external memory store. session/ supplies the real implementation
// (git-worktree-backed); tests supply an in-memory fake.
type Store interface {
	Save(state State) error
	Delete(agentID string) error
	LoadAll() (map[string]State, error)
}

// Pool groups agents spawned from one template with size bounds (§4.6).
type Pool struct {
	ID           string
	Name         string
	TemplateType string
	MinSize      int
	MaxSize      int
	AgentIDs     []string
}
