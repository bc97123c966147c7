// Package session implements the Session Manager (C7, §4.7): atomic
// binding of a spawned terminal, a git-worktree memory bank, and a session
// record, plus persistence and restore of the active session set.
package session

import "time"

// Status is a Session's lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusIdle       Status = "idle"
	StatusTerminated Status = "terminated"
)

// Profile describes what createSession needs to allocate a session.
type Profile struct {
	AgentID      string
	RepoPath     string
	ShellCommand string
}

// Session is the bound-resource record the manager tracks.
type Session struct {
	ID             string
	AgentID        string
	Status         Status
	CreatedAt      time.Time
	LastActiveAt   time.Time
	TerminalName   string
	MemoryBankPath string
	BranchName     string

	terminal *Terminal
	memory   *MemoryBank
}

// Record is the serializable snapshot persisted to disk by persistSessions
// and read back by restoreSessions.
type Record struct {
	ID             string    `json:"id"`
	AgentID        string    `json:"agentId"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActiveAt   time.Time `json:"lastActiveAt"`
	RepoPath       string    `json:"repoPath"`
	ShellCommand   string    `json:"shellCommand"`
	TerminalName   string    `json:"terminalName"`
	MemoryBankPath string    `json:"memoryBankPath"`
	BranchName     string    `json:"branchName"`
}
