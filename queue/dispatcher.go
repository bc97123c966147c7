package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/breaker"
	"github.com/orchestrace/control-plane/capability"
	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/log"
)

// AgentSource is the narrow view of the Agent Manager the dispatcher needs:
// who is eligible for a new task, and how to record an assignment/outcome.
type AgentSource interface {
	Candidates() []agent.Agent
	AssignTask(agentID string) error
	CompleteTask(agentID string, execTime time.Duration, success bool) error
}

// Manager is the Task Queue & Dispatcher: it owns the bounded priority
// queue, drives assignment via the Matcher, and observes task lifecycle
// events emitted by the agent runtime.
type Manager struct {
	mu      sync.Mutex
	queue   *boundedQueue
	tasks   map[string]*Task
	agents  AgentSource
	matcher *capability.Matcher
	bus     *eventbus.Bus
	cb      *breaker.Breaker
	backoff BackoffStrategy
}

// BackoffStrategy computes the delay before a failed task is retried.
type BackoffStrategy interface {
	NextDelay(retryCount int) time.Duration
}

// ExponentialBackoff doubles the delay per retry: 2^n * Base, capped at Max.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponentialBackoff returns the default schedule from §4.8: 2^retry * 1s.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{Base: time.Second, Max: 5 * time.Minute}
}

func (b *ExponentialBackoff) NextDelay(retryCount int) time.Duration {
	d := b.Base << uint(retryCount)
	if d > b.Max {
		return b.Max
	}
	return d
}

// New constructs a dispatcher. capacity <= 0 means unbounded. bus and cb may
// be nil (tests commonly omit both); a non-nil bus is wired immediately via
// Attach.
func New(capacity int, agents AgentSource, matcher *capability.Matcher, bus *eventbus.Bus, cb *breaker.Breaker) *Manager {
	m := &Manager{
		queue:   newBoundedQueue(capacity),
		tasks:   make(map[string]*Task),
		agents:  agents,
		matcher: matcher,
		cb:      cb,
		backoff: NewExponentialBackoff(),
	}
	if bus != nil {
		m.Attach(bus)
	}
	return m
}

// SubmitTask validates task, and either assigns it directly (if
// AssignedAgent is set) or enqueues it and drives the assignment loop
// (§4.8).
func (m *Manager) SubmitTask(ctx context.Context, task Task) error {
	if err := task.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.tasks[task.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, task.ID)
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = defaultMaxRetries
	}
	task.CreatedAt = time.Now()
	task.Status = StatusQueued
	t := task
	m.tasks[t.ID] = &t
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Emit(eventbus.TopicTaskCreated, eventbus.TaskCreatedPayload{
			TaskID: t.ID, Type: t.Type, Priority: t.Priority,
		})
	}

	if t.AssignedAgent != "" {
		return m.assign(ctx, t.ID, t.AssignedAgent)
	}

	m.mu.Lock()
	err := m.queue.push(t.ID, t.Priority)
	if err != nil {
		delete(m.tasks, t.ID)
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.processQueue(ctx)
	return nil
}

// DriveQueue re-runs candidate assignment, e.g. after an external caller
// learns an agent has become idle.
func (m *Manager) DriveQueue(ctx context.Context) {
	m.processQueue(ctx)
}

// processQueue assigns queued tasks to candidate agents until either the
// queue empties or no candidate remains. A head task with no matching
// candidate is pushed back and the loop stops (§4.8).
func (m *Manager) processQueue(ctx context.Context) {
	for {
		m.mu.Lock()
		taskID, ok := m.queue.peek()
		if !ok {
			m.mu.Unlock()
			return
		}
		task := m.tasks[taskID]
		m.mu.Unlock()

		candidates := m.agents.Candidates()
		if len(candidates) == 0 {
			return
		}

		req := capability.TaskRequirements{
			RequiredCapabilities:  task.Requirements.RequiredCapabilities,
			PreferredCapabilities: task.Requirements.PreferredCapabilities,
			Languages:             task.Requirements.Languages,
			Frameworks:            task.Requirements.Frameworks,
			Domains:               task.Requirements.Domains,
			Complexity:            task.Requirements.Complexity,
		}
		snapshots := toSnapshots(candidates)
		ranked := m.matcher.FindBestAgents(req, snapshots, 1)
		if len(ranked) == 0 {
			// No candidate can serve the head task; stop to avoid spinning.
			return
		}

		m.mu.Lock()
		m.queue.pop()
		m.mu.Unlock()

		if err := m.assign(ctx, taskID, ranked[0].AgentID); err != nil {
			log.ErrorLog.Printf("task %s: assignment to %s failed, requeuing head: %v", taskID, ranked[0].AgentID, err)
			m.mu.Lock()
			m.queue.pushFront(taskID, task.Priority)
			m.mu.Unlock()
			return
		}
	}
}

func toSnapshots(agents []agent.Agent) []capability.AgentSnapshot {
	out := make([]capability.AgentSnapshot, 0, len(agents))
	for _, a := range agents {
		max := a.Capabilities.MaxConcurrentTasks
		if max <= 0 {
			max = 1
		}
		workload := float64(a.CurrentTaskCount) / float64(max)
		if workload > 1 {
			workload = 1
		}
		out = append(out, capability.AgentSnapshot{
			ID: a.ID, Capabilities: a.Capabilities, Health: a.Health, Workload: workload,
		})
	}
	return out
}

// assign hands taskID to agentID through the TaskAssignment circuit
// breaker: repeated failures trip it and further assignments fail fast
// without touching the agent.
func (m *Manager) assign(ctx context.Context, taskID, agentID string) error {
	do := func(ctx context.Context) error { return m.agents.AssignTask(agentID) }

	var err error
	if m.cb != nil {
		err = m.cb.Execute(ctx, do)
	} else {
		err = do(ctx)
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	task, ok := m.tasks[taskID]
	if ok {
		task.Status = StatusAssigned
		task.AssignedAgent = agentID
	}
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Emit(eventbus.TopicTaskAssigned, eventbus.TaskAssignedPayload{TaskID: taskID, AgentID: agentID})
	}
	return nil
}
