package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestrace/control-plane/eventbus"
)

func TestScoreFullHealthWithNoHistory(t *testing.T) {
	s := Score(AgentSnapshot{LastHeartbeat: time.Now()}, time.Second)
	assert.Equal(t, 1.0, s.Responsiveness)
	assert.Equal(t, 1.0, s.Performance)
	assert.Equal(t, 1.0, s.Reliability)
	assert.Equal(t, 1.0, s.ResourceUsage)
	assert.Equal(t, 1.0, s.Overall)
}

func TestScoreStaleHeartbeatDegradesResponsiveness(t *testing.T) {
	s := Score(AgentSnapshot{LastHeartbeat: time.Now().Add(-5 * time.Second)}, time.Second)
	assert.Equal(t, 0.0, s.Responsiveness)
}

func TestScoreReliabilityRatio(t *testing.T) {
	s := Score(AgentSnapshot{LastHeartbeat: time.Now(), TasksCompleted: 3, TasksFailed: 1}, time.Second)
	assert.Equal(t, 0.75, s.Reliability)
}

func TestScoreResourceUsageMean(t *testing.T) {
	s := Score(AgentSnapshot{
		LastHeartbeat: time.Now(),
		Resources: ResourceUsage{
			Memory: 50, MemoryLimit: 100,
			CPU: 0, CPULimit: 100,
			Disk: 100, DiskLimit: 100,
		},
	}, time.Second)
	// (0.5 + 1.0 + 0.0) / 3
	assert.InDelta(t, 0.5, s.ResourceUsage, 1e-9)
}

func TestCheckAgentGeneratesIssueForUnhealthyComponent(t *testing.T) {
	bus := eventbus.New()
	m := New(Config{HeartbeatInterval: time.Second, AutoRestart: false}, bus, nil, nil)

	_, issues := m.CheckAgent(context.Background(), AgentSnapshot{
		AgentID:       "a1",
		LastHeartbeat: time.Now().Add(-10 * time.Second),
	})

	require.NotEmpty(t, issues)
	found := false
	for _, iss := range issues {
		if iss.Component == "responsiveness" {
			found = true
			assert.Equal(t, SeverityCritical, iss.Severity)
		}
	}
	assert.True(t, found)
}

func TestCheckHeartbeatsEmitsTimeoutEvent(t *testing.T) {
	bus := eventbus.New()
	var gotAgent string
	bus.On(eventbus.TopicHeartbeatTimeout, func(payload any) {
		gotAgent = payload.(eventbus.HeartbeatTimeoutPayload).AgentID
	})

	m := New(Config{HeartbeatInterval: time.Second, AutoRestart: false}, bus, nil, nil)
	timedOut := m.CheckHeartbeats(context.Background(), []AgentSnapshot{
		{AgentID: "a1", LastHeartbeat: time.Now().Add(-10 * time.Second)},
		{AgentID: "a2", LastHeartbeat: time.Now()},
		{AgentID: "a3", LastHeartbeat: time.Now().Add(-10 * time.Second), Offline: true},
	})

	assert.Equal(t, []string{"a1"}, timedOut)
	assert.Equal(t, "a1", gotAgent)
}

func TestTrendDetectsDegrading(t *testing.T) {
	h := NewHistory(10)
	for i := 0; i < 6; i++ {
		h.Add(Record{Scores: Scores{Overall: 1.0 - float64(i)*0.15}})
	}
	assert.Equal(t, "degrading", h.Trend(6))
}
