package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/capability"
	"github.com/orchestrace/control-plane/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgents struct {
	mu         sync.Mutex
	agents     map[string]agent.Agent
	assignErrs map[string]error
	assigned   []string
}

func newFakeAgents(agents ...agent.Agent) *fakeAgents {
	f := &fakeAgents{agents: make(map[string]agent.Agent), assignErrs: make(map[string]error)}
	for _, a := range agents {
		f.agents[a.ID] = a
	}
	return f
}

func (f *fakeAgents) Candidates() []agent.Agent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]agent.Agent, 0, len(f.agents))
	for _, a := range f.agents {
		if a.CurrentTaskCount < a.Capabilities.MaxConcurrentTasks {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeAgents) AssignTask(agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.assignErrs[agentID]; ok && err != nil {
		return err
	}
	a := f.agents[agentID]
	a.CurrentTaskCount++
	f.agents[agentID] = a
	f.assigned = append(f.assigned, agentID)
	return nil
}

func (f *fakeAgents) CompleteTask(agentID string, execTime time.Duration, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.agents[agentID]
	if a.CurrentTaskCount > 0 {
		a.CurrentTaskCount--
	}
	f.agents[agentID] = a
	return nil
}

func oneAgent(id string) agent.Agent {
	return agent.Agent{
		ID: id, Status: agent.StatusIdle, Health: 1.0,
		Capabilities: capability.Capabilities{MaxConcurrentTasks: 2, Reliability: 1.0},
	}
}

func TestSubmitTaskValidation(t *testing.T) {
	m := New(0, newFakeAgents(), capability.NewMatcher(), nil, nil)
	err := m.SubmitTask(context.Background(), Task{ID: "", Type: "x", Description: "y"})
	assert.ErrorIs(t, err, ErrInvalidTask)

	err = m.SubmitTask(context.Background(), Task{ID: "t1", Type: "x", Description: "y", Priority: 101})
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestSubmitTaskDuplicateID(t *testing.T) {
	m := New(0, newFakeAgents(oneAgent("a1")), capability.NewMatcher(), nil, nil)
	require.NoError(t, m.SubmitTask(context.Background(), Task{ID: "t1", Type: "x", Description: "y"}))
	err := m.SubmitTask(context.Background(), Task{ID: "t1", Type: "x", Description: "y"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestSubmitTaskAssignsDirectlyWhenAgentSpecified(t *testing.T) {
	fa := newFakeAgents(oneAgent("a1"))
	m := New(0, fa, capability.NewMatcher(), nil, nil)
	require.NoError(t, m.SubmitTask(context.Background(), Task{
		ID: "t1", Type: "x", Description: "y", AssignedAgent: "a1",
	}))
	task, ok := m.Get("t1")
	require.True(t, ok)
	assert.Equal(t, StatusAssigned, task.Status)
	assert.Equal(t, []string{"a1"}, fa.assigned)
}

func TestProcessQueueAssignsQueuedTaskToCandidate(t *testing.T) {
	fa := newFakeAgents(oneAgent("a1"))
	m := New(0, fa, capability.NewMatcher(), nil, nil)
	require.NoError(t, m.SubmitTask(context.Background(), Task{ID: "t1", Type: "x", Description: "y", Priority: 50}))

	task, ok := m.Get("t1")
	require.True(t, ok)
	assert.Equal(t, StatusAssigned, task.Status)
	assert.Equal(t, "a1", task.AssignedAgent)
}

func TestProcessQueueStopsWhenNoCandidates(t *testing.T) {
	m := New(0, newFakeAgents(), capability.NewMatcher(), nil, nil)
	require.NoError(t, m.SubmitTask(context.Background(), Task{ID: "t1", Type: "x", Description: "y"}))

	task, ok := m.Get("t1")
	require.True(t, ok)
	assert.Equal(t, StatusQueued, task.Status)
}

func TestSubmitTaskFailsWhenQueueFull(t *testing.T) {
	m := New(1, newFakeAgents(), capability.NewMatcher(), nil, nil)
	require.NoError(t, m.SubmitTask(context.Background(), Task{ID: "t1", Type: "x", Description: "y"}))
	err := m.SubmitTask(context.Background(), Task{ID: "t2", Type: "x", Description: "y"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestOnFailedRetriesWithBackoffThenTerminatesAfterMaxRetries(t *testing.T) {
	fa := newFakeAgents(oneAgent("a1"))
	m := New(0, fa, capability.NewMatcher(), nil, nil)
	m.backoff = &ExponentialBackoff{Base: time.Millisecond, Max: time.Second}

	require.NoError(t, m.SubmitTask(context.Background(), Task{ID: "t1", Type: "x", Description: "y", MaxRetries: 1}))

	m.onFailed(context.Background(), eventbus.TaskFailedPayload{TaskID: "t1", AgentID: "a1", Error: "boom"})
	task, _ := m.Get("t1")
	assert.Equal(t, 1, task.RetryCount)

	require.Eventually(t, func() bool {
		task, _ := m.Get("t1")
		return task.Status == StatusAssigned
	}, time.Second, 5*time.Millisecond)

	m.onFailed(context.Background(), eventbus.TaskFailedPayload{TaskID: "t1", AgentID: "a1", Error: "boom again"})
	task, _ = m.Get("t1")
	assert.Equal(t, StatusFailed, task.Status)
}

func TestResolveDeadlockCancelsLowestPriorityAgentsTasks(t *testing.T) {
	fa := newFakeAgents(oneAgent("high"), oneAgent("low"))
	m := New(0, fa, capability.NewMatcher(), nil, nil)
	m.tasks["t-high"] = &Task{ID: "t-high", AssignedAgent: "high", Status: StatusRunning, Priority: 80}
	m.tasks["t-low"] = &Task{ID: "t-low", AssignedAgent: "low", Status: StatusRunning, Priority: 10}

	m.ResolveDeadlock(eventbus.DeadlockDetectedPayload{Agents: []string{"high", "low"}})

	low, ok := m.Get("t-low")
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, low.Status)

	high, ok := m.Get("t-high")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, high.Status)
}
