// Package agent implements the Agent Manager (C6, §4.6): typed agent
// templates, process-backed agent runtimes, and pool lifecycle management.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orchestrace/control-plane/config"
	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/log"
)

// newProcessFunc lets tests substitute a fake Process in place of a real
// pty-spawned one.
type newProcessFunc func(spec ProcessSpec) processHandle

// processHandle is the subset of *Process the manager depends on, narrowed
// so tests can inject a fake without spawning a real process.
type processHandle interface {
	Start() error
	Stop(timeout time.Duration) error
	Exited() bool
}

func defaultNewProcess(spec ProcessSpec) processHandle { return NewProcess(spec) }

// maxErrorHistory bounds Agent.Errors to a ring of the most recent entries
// (§3/§9's bounded errorHistory).
const maxErrorHistory = 50

// appendError records msg on a.Errors, truncating to the last
// maxErrorHistory entries. Caller must hold m.mu.
func appendError(a *Agent, msg string) {
	a.Errors = append(a.Errors, ErrorRecord{Timestamp: time.Now(), Message: msg})
	if len(a.Errors) > maxErrorHistory {
		a.Errors = a.Errors[len(a.Errors)-maxErrorHistory:]
	}
}

// Manager owns every spawned agent and pool.
type Manager struct {
	mu    sync.Mutex
	cfg   *config.Config
	bus   *eventbus.Bus
	store Store

	agents map[string]*Agent
	procs  map[string]processHandle
	pools  map[string]*Pool

	newProcess newProcessFunc
	nextPoolID uint64
}

// New constructs a Manager. store may be nil to run without persistence
// (primarily for tests).
func New(cfg *config.Config, bus *eventbus.Bus, store Store) *Manager {
	return &Manager{
		cfg:        cfg,
		bus:        bus,
		store:      store,
		agents:     make(map[string]*Agent),
		procs:      make(map[string]processHandle),
		pools:      make(map[string]*Pool),
		newProcess: defaultNewProcess,
	}
}

func (m *Manager) activeCount() int {
	n := 0
	for _, a := range m.agents {
		if a.Status != StatusTerminated {
			n++
		}
	}
	return n
}

// CreateAgent instantiates templateName with overrides applied, persists its
// initial state, and returns its id. The agent starts in `initializing`.
func (m *Manager) CreateAgent(templateName string, overrides *Template) (string, error) {
	tmpl, ok := defaultTemplates[templateName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, templateName)
	}

	m.mu.Lock()
	if m.activeCount() >= m.cfg.MaxAgents {
		m.mu.Unlock()
		return "", ErrLimitExceeded
	}
	merged := applyOverrides(tmpl, overrides)
	id := fmt.Sprintf("agent-%s-%d", templateName, time.Now().UnixNano())
	a := &Agent{
		ID:            id,
		TemplateType:  templateName,
		Name:          id,
		Capabilities:  merged.Capabilities,
		AutonomyLevel: merged.AutonomyLevel,
		Status:        StatusInitializing,
		CreatedAt:     time.Now(),
		Health:        1.0,
	}
	m.agents[id] = a
	m.mu.Unlock()

	m.persist(a)
	return id, nil
}

func (m *Manager) persist(a *Agent) {
	if m.store == nil {
		return
	}
	state := State{
		ID: a.ID, TemplateType: a.TemplateType, Name: a.Name,
		Capabilities: a.Capabilities, AutonomyLevel: a.AutonomyLevel,
		Status: a.Status, CreatedAt: a.CreatedAt,
	}
	if err := m.store.Save(state); err != nil {
		log.ErrorLog.Printf("agent %s: failed to persist state: %v", a.ID, err)
	}
}

// StartAgent transitions an initializing|offline agent to idle by spawning
// its process and awaiting agent:ready within defaultTimeout.
func (m *Manager) StartAgent(ctx context.Context, id string) error {
	m.mu.Lock()
	a, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if a.Status != StatusInitializing && a.Status != StatusOffline {
		m.mu.Unlock()
		return fmt.Errorf("%w: agent %s is %s", ErrInvalidTransition, id, a.Status)
	}
	m.mu.Unlock()

	spec := ProcessSpec{
		AgentID: id, AgentType: a.TemplateType, AgentName: a.Name,
		Command:          m.cfg.EnvironmentDefaults.Runtime,
		WorkingDirectory: m.cfg.EnvironmentDefaults.WorkingDirectory,
		LogDirectory:     m.cfg.EnvironmentDefaults.LogDirectory,
	}
	proc := m.newProcess(spec)

	if err := proc.Start(); err != nil {
		m.transitionError(a, fmt.Sprintf("failed to start process: %v", err))
		return err
	}

	m.mu.Lock()
	m.procs[id] = proc
	m.mu.Unlock()

	timeout := time.Duration(m.cfg.DefaultTimeoutMs) * time.Millisecond
	if err := m.awaitReady(id, timeout); err != nil {
		m.transitionError(a, err.Error())
		return err
	}

	m.setStatus(a, StatusIdle)
	return nil
}

func (m *Manager) awaitReady(agentID string, timeout time.Duration) error {
	ch := make(chan struct{}, 1)
	id := m.bus.OnFiltered(eventbus.TopicAgentReady, func(payload any) bool {
		p, ok := payload.(eventbus.AgentReadyPayload)
		return ok && p.AgentID == agentID
	}, func(payload any) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	defer m.bus.Off(eventbus.TopicAgentReady, id)

	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("agent %s: timed out waiting for agent:ready", agentID)
	}
}

func (m *Manager) transitionError(a *Agent, msg string) {
	m.mu.Lock()
	appendError(a, msg)
	from := a.Status
	a.Status = StatusError
	m.mu.Unlock()

	m.persist(a)
	if m.bus != nil {
		m.bus.Emit(eventbus.TopicAgentStatusChanged, eventbus.AgentStatusChangedPayload{
			AgentID: a.ID, From: string(from), To: string(StatusError),
		})
		m.bus.Emit(eventbus.TopicAgentError, eventbus.AgentErrorPayload{AgentID: a.ID, Error: msg})
	}
}

func (m *Manager) setStatus(a *Agent, status Status) {
	m.mu.Lock()
	from := a.Status
	a.Status = status
	m.mu.Unlock()

	m.persist(a)
	if m.bus != nil && from != status {
		m.bus.Emit(eventbus.TopicAgentStatusChanged, eventbus.AgentStatusChangedPayload{
			AgentID: a.ID, From: string(from), To: string(status),
		})
	}
}

// StopAgent is idempotent for offline|terminated agents. It sends SIGTERM,
// escalates to SIGKILL after defaultTimeout, and always cleans up the
// process handle and transitions to terminated.
func (m *Manager) StopAgent(id string, reason string) error {
	m.mu.Lock()
	a, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if a.Status == StatusOffline || a.Status == StatusTerminated {
		m.mu.Unlock()
		return nil
	}
	proc := m.procs[id]
	m.mu.Unlock()

	m.setStatus(a, StatusTerminating)

	if proc != nil {
		timeout := time.Duration(m.cfg.DefaultTimeoutMs) * time.Millisecond
		if err := proc.Stop(timeout); err != nil {
			log.ErrorLog.Printf("agent %s: stop error (reason=%s): %v", id, reason, err)
		}
	}

	m.mu.Lock()
	delete(m.procs, id)
	m.mu.Unlock()

	m.setStatus(a, StatusTerminated)
	return nil
}

// RestartAgent stops then starts an agent, satisfying health.RestartFunc.
func (m *Manager) RestartAgent(ctx context.Context, id string, reason string) error {
	m.mu.Lock()
	a, ok := m.agents[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if err := m.StopAgent(id, reason); err != nil {
		return err
	}

	m.mu.Lock()
	a.RestartAttempts++
	a.Status = StatusOffline
	m.mu.Unlock()

	return m.StartAgent(ctx, id)
}

// RemoveAgent stops an active agent if needed, then deletes every trace of
// it from the manager, its pools, and the persistence store.
func (m *Manager) RemoveAgent(id string) error {
	m.mu.Lock()
	a, ok := m.agents[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if a.Status != StatusOffline && a.Status != StatusTerminated {
		if err := m.StopAgent(id, "removed"); err != nil {
			log.ErrorLog.Printf("agent %s: stop during remove failed: %v", id, err)
		}
	}

	m.mu.Lock()
	delete(m.agents, id)
	delete(m.procs, id)
	for _, p := range m.pools {
		p.AgentIDs = removeString(p.AgentIDs, id)
	}
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(id); err != nil {
			log.ErrorLog.Printf("agent %s: failed to delete persisted state: %v", id, err)
		}
	}
	return nil
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// Get returns a read-only snapshot of an agent.
func (m *Manager) Get(id string) (Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return Agent{}, false
	}
	return a.snapshot(), true
}

// List returns read-only snapshots of every tracked agent.
func (m *Manager) List() []Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a.snapshot())
	}
	return out
}

// HandleProcessExit is wired to the process supervisor's exit notification:
// status moves to offline, an error record is appended, and
// agent:process-exit is emitted. If auto-restart is enabled, a restart is
// scheduled with exponential backoff bounded by maxRetries.
func (m *Manager) HandleProcessExit(ctx context.Context, id string, exitErr error) {
	m.mu.Lock()
	a, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	msg := "process exited"
	if exitErr != nil {
		msg = fmt.Sprintf("process exited: %v", exitErr)
	}
	appendError(a, msg)
	attempts := a.RestartAttempts
	m.mu.Unlock()

	m.setStatus(a, StatusOffline)
	if m.bus != nil {
		m.bus.Emit(eventbus.TopicAgentProcessExit, eventbus.AgentErrorPayload{AgentID: id, Error: msg})
	}

	if !m.cfg.AutoRestart {
		return
	}
	maxRetries := m.cfg.TaskMaxRetries
	if attempts >= maxRetries {
		log.WarningLog.Printf("agent %s: exceeded max restart attempts (%d)", id, maxRetries)
		return
	}

	backoff := time.Duration(1<<uint(attempts)) * time.Second
	go func() {
		time.Sleep(backoff)
		if err := m.RestartAgent(ctx, id, "process exit auto-restart"); err != nil {
			log.ErrorLog.Printf("agent %s: auto-restart failed: %v", id, err)
		}
	}()
}
