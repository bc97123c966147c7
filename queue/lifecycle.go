package queue

import (
	"context"
	"math"
	"time"

	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/log"
)

// Attach wires the dispatcher to the task lifecycle and deadlock topics
// emitted by the agent runtime and the rest of the control plane (§4.8). It
// is separate from New so tests can construct a Manager without a live bus.
func (m *Manager) Attach(bus *eventbus.Bus) {
	m.bus = bus
	bus.On(eventbus.TopicTaskStarted, func(payload any) {
		p, ok := payload.(eventbus.TaskStartedPayload)
		if !ok {
			return
		}
		m.onStarted(p.TaskID)
	})
	bus.On(eventbus.TopicTaskCompleted, func(payload any) {
		p, ok := payload.(eventbus.TaskCompletedPayload)
		if !ok {
			return
		}
		m.onCompleted(context.Background(), p)
	})
	bus.On(eventbus.TopicTaskFailed, func(payload any) {
		p, ok := payload.(eventbus.TaskFailedPayload)
		if !ok {
			return
		}
		m.onFailed(context.Background(), p)
	})
	bus.On(eventbus.TopicDeadlockDetected, func(payload any) {
		p, ok := payload.(eventbus.DeadlockDetectedPayload)
		if !ok {
			return
		}
		m.ResolveDeadlock(p)
	})
}

func (m *Manager) onStarted(taskID string) {
	m.mu.Lock()
	task, ok := m.tasks[taskID]
	if ok {
		task.Status = StatusRunning
		task.StartedAt = time.Now()
	}
	m.mu.Unlock()
}

// onCompleted records a successful task outcome, updates the owning agent's
// rolling metrics, and drives the queue again in case the agent just freed
// up capacity.
func (m *Manager) onCompleted(ctx context.Context, p eventbus.TaskCompletedPayload) {
	m.mu.Lock()
	task, ok := m.tasks[p.TaskID]
	if !ok {
		m.mu.Unlock()
		return
	}
	task.Status = StatusCompleted
	task.CompletedAt = time.Now()
	task.Result = p.Result
	task.ExecutionTime = time.Duration(p.ExecutionTime) * time.Millisecond
	execTime := task.ExecutionTime
	m.mu.Unlock()

	if err := m.agents.CompleteTask(p.AgentID, execTime, true); err != nil {
		log.WarningLog.Printf("task %s: recording completion on agent %s: %v", p.TaskID, p.AgentID, err)
	}
	m.processQueue(ctx)
}

// onFailed applies the retry policy: re-enqueue with backoff while under
// maxRetries, otherwise surface as a terminal failure (§4.8).
func (m *Manager) onFailed(ctx context.Context, p eventbus.TaskFailedPayload) {
	m.mu.Lock()
	task, ok := m.tasks[p.TaskID]
	if !ok {
		m.mu.Unlock()
		return
	}
	task.Error = p.Error
	retry := task.RetryCount < task.MaxRetries
	if retry {
		task.RetryCount++
		task.Status = StatusQueued
		task.AssignedAgent = ""
	} else {
		task.Status = StatusFailed
		task.CompletedAt = time.Now()
	}
	priority := task.Priority
	retryCount := task.RetryCount
	m.mu.Unlock()

	if err := m.agents.CompleteTask(p.AgentID, 0, false); err != nil {
		log.WarningLog.Printf("task %s: recording failure on agent %s: %v", p.TaskID, p.AgentID, err)
	}

	if !retry {
		return
	}

	delay := m.backoff.NextDelay(retryCount - 1)
	go func(id string, pr int, d time.Duration) {
		time.Sleep(d)
		m.mu.Lock()
		if err := m.queue.push(id, pr); err != nil {
			m.mu.Unlock()
			log.ErrorLog.Printf("task %s: failed to requeue after backoff: %v", id, err)
			return
		}
		m.mu.Unlock()
		m.processQueue(ctx)
	}(p.TaskID, priority, delay)
}

// ResolveDeadlock cancels every task assigned to the lowest-priority agent
// named in the report (§4.8/§4.9). "Lowest-priority agent" is read here as
// the agent whose currently assigned/running work has the lowest task
// priority; an agent holding nothing ranks lowest of all.
func (m *Manager) ResolveDeadlock(p eventbus.DeadlockDetectedPayload) {
	if len(p.Agents) == 0 {
		return
	}

	m.mu.Lock()
	victim := p.Agents[0]
	lowest := math.MaxInt
	for _, agentID := range p.Agents {
		highestHeld := -1
		for _, t := range m.tasks {
			if t.AssignedAgent != agentID {
				continue
			}
			if t.Status != StatusAssigned && t.Status != StatusRunning {
				continue
			}
			if t.Priority > highestHeld {
				highestHeld = t.Priority
			}
		}
		if highestHeld == -1 {
			highestHeld = -1 // idle agent: strictly lower priority than any held task
		}
		if highestHeld < lowest {
			lowest = highestHeld
			victim = agentID
		}
	}
	m.mu.Unlock()

	m.CancelAgentTasks(victim, "Agent termination")
}

// CancelAgentTasks transitions every task currently assigned to or running
// on agentID to cancelled.
func (m *Manager) CancelAgentTasks(agentID, reason string) {
	m.mu.Lock()
	var cancelled []string
	for id, t := range m.tasks {
		if t.AssignedAgent != agentID {
			continue
		}
		if t.Status != StatusAssigned && t.Status != StatusRunning {
			continue
		}
		t.Status = StatusCancelled
		t.CompletedAt = time.Now()
		cancelled = append(cancelled, id)
	}
	m.mu.Unlock()

	if m.bus == nil {
		return
	}
	for _, id := range cancelled {
		m.bus.Emit(eventbus.TopicTaskCancelled, eventbus.TaskCancelledPayload{TaskID: id, Reason: reason})
	}
}

// Get returns a copy of a tracked task.
func (m *Manager) Get(id string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// List returns copies of every tracked task.
func (m *Manager) List() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	return out
}

// PruneCompleted drops tracked completed/failed/cancelled tasks that
// finished before cutoff, returning how many were removed.
func (m *Manager) PruneCompleted(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, t := range m.tasks {
		switch t.Status {
		case StatusCompleted, StatusFailed, StatusCancelled:
		default:
			continue
		}
		if t.CompletedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}
