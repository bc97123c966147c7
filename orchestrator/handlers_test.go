package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestrace/control-plane/config"
	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/queue"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := config.DefaultConfig()
	return New(cfg, nil)
}

func TestHandleAgentErrorTerminatesPermanentlyAtThreshold(t *testing.T) {
	o := newTestOrchestrator(t)
	id, err := o.Agents.CreateAgent("developer", nil)
	require.NoError(t, err)

	o.handleAgentError(id)
	o.handleAgentError(id)
	o.handleAgentError(id)

	_, ok := o.Agents.Get(id)
	assert.False(t, ok, "agent should be removed once its error count reaches the threshold")
}

func TestHandleAgentErrorUnderThresholdLeavesAgentInPlace(t *testing.T) {
	o := newTestOrchestrator(t)
	id, err := o.Agents.CreateAgent("developer", nil)
	require.NoError(t, err)

	o.handleAgentError(id)

	o.state.mu.Lock()
	count := o.state.agentErrorCounts[id]
	o.state.mu.Unlock()
	assert.Equal(t, 1, count)

	_, ok := o.Agents.Get(id)
	assert.True(t, ok, "agent under the threshold should not be removed")
}

func TestIsHighPriorityByPriorityValue(t *testing.T) {
	high := queue.Task{Priority: 90}
	low := queue.Task{Priority: 89}
	assert.True(t, isHighPriority(high))
	assert.False(t, isHighPriority(low))
}

func TestIsHighPriorityByCriticalMetadata(t *testing.T) {
	critical := queue.Task{Priority: 1, Metadata: map[string]any{"critical": true}}
	assert.True(t, isHighPriority(critical))
}

func TestTaskCompletedEventUpdatesMetrics(t *testing.T) {
	o := newTestOrchestrator(t)
	o.bus.Emit(eventbus.TopicTaskCompleted, eventbus.TaskCompletedPayload{
		TaskID: "t-1", AgentID: "a-1", ExecutionTime: 250,
	})

	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	assert.Equal(t, int64(1), o.state.metrics.CompletedTasks)
	assert.Equal(t, 250*time.Millisecond, o.state.metrics.TotalTaskDuration)
}
