package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/orchestrace/control-plane/breaker"
	"github.com/orchestrace/control-plane/config"
	"github.com/orchestrace/control-plane/log"
)

const snapshotFileName = "sessions.json"

const terminateBatchSize = 5

// Manager binds terminals and memory banks into tracked Sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cb       *breaker.Breaker
	nextID   uint64
}

// New constructs a Manager. cb may be nil to run persistSessions
// unprotected (tests commonly do this).
func New(cb *breaker.Breaker) *Manager {
	return &Manager{sessions: make(map[string]*Session), cb: cb}
}

// CreateSession atomically binds a terminal, a memory bank, and a session
// record. If any step fails, already-allocated resources are released
// best-effort before the error is returned (§4.7).
func (m *Manager) CreateSession(profile Profile) (*Session, error) {
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("session-%d", m.nextID)
	m.mu.Unlock()

	bank, err := NewMemoryBank(profile.RepoPath, profile.AgentID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := bank.Setup(); err != nil {
		return nil, fmt.Errorf("create session: memory bank setup: %w", err)
	}

	term := NewTerminal(id)
	shell := profile.ShellCommand
	if shell == "" {
		shell = "sh"
	}
	if err := term.Start(bank.Path(), shell); err != nil {
		if cleanupErr := bank.Remove(); cleanupErr != nil {
			log.ErrorLog.Printf("create session: releasing memory bank after terminal failure: %v", cleanupErr)
		}
		return nil, fmt.Errorf("create session: terminal start: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID: id, AgentID: profile.AgentID, Status: StatusActive,
		CreatedAt: now, LastActiveAt: now,
		TerminalName: term.sanitizedName, MemoryBankPath: bank.Path(), BranchName: bank.Branch(),
		terminal: term, memory: bank,
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	return sess, nil
}

// TerminateSession tears down a session's terminal and memory bank, each
// bounded to 5s, and marks it terminated regardless of teardown errors.
func (m *Manager) TerminateSession(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}

	var errs []error
	if err := withTimeout(5*time.Second, func() error {
		if sess.terminal == nil {
			return nil
		}
		return sess.terminal.Close()
	}); err != nil {
		errs = append(errs, fmt.Errorf("terminal teardown: %w", err))
	}

	if err := withTimeout(5*time.Second, func() error {
		if sess.memory == nil {
			return nil
		}
		return sess.memory.Remove()
	}); err != nil {
		errs = append(errs, fmt.Errorf("memory bank teardown: %w", err))
	}

	m.mu.Lock()
	sess.Status = StatusTerminated
	m.mu.Unlock()

	return CombineErrors(errs)
}

// withTimeout runs fn on a goroutine and returns a timeout error if it does
// not complete within d. fn's own error, if any, is still returned on time.
func withTimeout(d time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return fmt.Errorf("timed out after %s", d)
	}
}

// TerminateAllSessions terminates every tracked session in batches of 5 to
// bound concurrent teardown load.
func (m *Manager) TerminateAllSessions() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for start := 0; start < len(ids); start += terminateBatchSize {
		end := start + terminateBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		var wg sync.WaitGroup
		results := make([]error, len(batch))
		for i, id := range batch {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				results[i] = m.TerminateSession(id)
			}(i, id)
		}
		wg.Wait()
		errs = append(errs, results...)
	}
	return CombineErrors(errs)
}

// Metrics mirrors the orchestrator's task counters (§6), carried in the
// sessions.json envelope alongside the session records themselves.
type Metrics struct {
	CompletedTasks    int64         `json:"completedTasks"`
	FailedTasks       int64         `json:"failedTasks"`
	TotalTaskDuration time.Duration `json:"totalTaskDuration"`
}

// snapshotEnvelope is the on-disk shape of sessions.json (§6): session
// records plus the orchestrator's task metrics and a save timestamp.
type snapshotEnvelope struct {
	Sessions []Record  `json:"sessions"`
	Metrics  Metrics   `json:"metrics"`
	SavedAt  time.Time `json:"savedAt"`
}

// PersistSessions writes every tracked session's Record, together with
// metrics, to the config directory, circuit-broken so repeated disk
// failures fail fast instead of thrashing.
func (m *Manager) PersistSessions(ctx context.Context, metrics Metrics) error {
	write := func(ctx context.Context) error {
		path, err := snapshotPath()
		if err != nil {
			return err
		}

		m.mu.Lock()
		records := make([]Record, 0, len(m.sessions))
		for _, s := range m.sessions {
			records = append(records, Record{
				ID: s.ID, AgentID: s.AgentID, Status: s.Status,
				CreatedAt: s.CreatedAt, LastActiveAt: s.LastActiveAt,
				TerminalName: s.TerminalName, MemoryBankPath: s.MemoryBankPath,
				BranchName: s.BranchName,
			})
		}
		m.mu.Unlock()

		envelope := snapshotEnvelope{Sessions: records, Metrics: metrics, SavedAt: time.Now()}
		data, err := json.MarshalIndent(envelope, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling session snapshot: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
		return config.AtomicWriteFile(path, data, 0644)
	}

	if m.cb == nil {
		return write(ctx)
	}
	return m.cb.Execute(ctx, write)
}

// RestoreSessions reads the persisted snapshot and recreates active/idle
// sessions, preserving original ids and timestamps. A missing snapshot file
// is not an error. The persisted metrics/savedAt are not restored into
// live state; they exist for external inspection of the last shutdown.
func (m *Manager) RestoreSessions() error {
	path, err := snapshotPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading session snapshot: %w", err)
	}

	var envelope snapshotEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("parsing session snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range envelope.Sessions {
		if r.Status != StatusActive && r.Status != StatusIdle {
			continue
		}
		m.sessions[r.ID] = &Session{
			ID: r.ID, AgentID: r.AgentID, Status: r.Status,
			CreatedAt: r.CreatedAt, LastActiveAt: r.LastActiveAt,
			TerminalName: r.TerminalName, MemoryBankPath: r.MemoryBankPath,
			BranchName: r.BranchName,
		}
	}
	return nil
}

func snapshotPath() (string, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting config dir: %w", err)
	}
	return filepath.Join(dir, snapshotFileName), nil
}

// Get returns a read-only copy of a tracked session.
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	cp := *s
	cp.terminal = nil
	cp.memory = nil
	return cp, true
}

// List returns read-only copies of every tracked session.
func (m *Manager) List() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := *s
		cp.terminal = nil
		cp.memory = nil
		out = append(out, cp)
	}
	return out
}

// PruneTerminated drops tracked terminated sessions last active before
// cutoff, returning how many were removed. Used by the orchestrator's
// maintenance routine to bound memory held by old session records.
func (m *Manager) PruneTerminated(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.Status == StatusTerminated && s.LastActiveAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
