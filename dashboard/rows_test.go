package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/alert"
	"github.com/orchestrace/control-plane/queue"
)

func TestBuildAgentRows(t *testing.T) {
	agents := []agent.Agent{
		{ID: "agent-1", TemplateType: "coder", Status: agent.StatusIdle, Health: 0.9, CurrentTaskCount: 0, TasksCompleted: 5, TasksFailed: 1},
	}
	rows := buildAgentRows(agents)
	assert.Len(t, rows, 1)
	assert.Equal(t, "agent-1", rows[0][0])
	assert.Equal(t, "coder", rows[0][1])
	assert.Equal(t, "0.90", rows[0][3])
	assert.Equal(t, "0", rows[0][4])
	assert.Equal(t, "5/1", rows[0][5])
}

func TestBuildPoolRows(t *testing.T) {
	agents := []agent.Agent{
		{ID: "a1", Status: agent.StatusIdle},
		{ID: "a2", Status: agent.StatusBusy},
		{ID: "a3", Status: agent.StatusOffline},
	}
	pools := []agent.Pool{
		{ID: "pool-1", Name: "workers", TemplateType: "coder", MinSize: 2, MaxSize: 5, AgentIDs: []string{"a1", "a2", "a3"}},
	}
	rows := buildPoolRows(pools, agents)
	assert.Len(t, rows, 1)
	assert.Equal(t, "pool-1", rows[0][0])
	assert.Equal(t, "3/2-5", rows[0][3])
	assert.Equal(t, "1 idle / 1 busy", rows[0][4])
}

func TestBuildAlertRows(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	alerts := []alert.Alert{
		{ID: "alert-1", Level: alert.LevelCritical, Metric: "error.rate", Value: 0.8, Threshold: 0.5, Timestamp: now},
	}
	rows := buildAlertRows(alerts)
	assert.Len(t, rows, 1)
	assert.Equal(t, "alert-1", rows[0][0])
	assert.Equal(t, "error.rate", rows[0][2])
	assert.Equal(t, "12:00:00", rows[0][4])
}

func TestQueueDepth(t *testing.T) {
	tasks := []queue.Task{
		{Status: queue.StatusQueued},
		{Status: queue.StatusAssigned},
		{Status: queue.StatusRunning},
		{Status: queue.StatusCompleted},
	}
	assert.Equal(t, 2, queueDepth(tasks))
}

func TestBarClampsFraction(t *testing.T) {
	assert.Equal(t, 10, len([]rune(stripBarANSI(bar(-1, 10)))))
	assert.Equal(t, 10, len([]rune(stripBarANSI(bar(2, 10)))))
}

// stripBarANSI strips lipgloss color codes so the test can measure the
// rendered gauge's character width rather than its escape sequences.
func stripBarANSI(s string) string {
	var out []rune
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && r == 'm':
			inEscape = false
		case !inEscape:
			out = append(out, r)
		}
	}
	return string(out)
}
