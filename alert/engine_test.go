package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestrace/control-plane/metrics"
)

func TestRuleFiresOnThresholdBreach(t *testing.T) {
	e := NewEngine()
	fired := 0
	e.RegisterAction("log", func(ctx context.Context, a *Alert) error {
		fired++
		return nil
	})
	e.AddRule(Rule{
		ID: "cpu-high", Metric: "system.cpu", Condition: ConditionGT,
		Threshold: 0.9, Severity: LevelCritical, Actions: []string{"log"}, Enabled: true,
	})

	e.onPoint("system.cpu", metrics.Point{Timestamp: time.Now(), Value: 0.95})

	assert.Equal(t, 1, fired)
	require.Len(t, e.ActiveAlerts(), 1)
	assert.Equal(t, "cpu-high", e.ActiveAlerts()[0].RuleID)
}

func TestDisabledRuleNeverFires(t *testing.T) {
	e := NewEngine()
	e.AddRule(Rule{ID: "r", Metric: "system.cpu", Condition: ConditionGT, Threshold: 0.1, Enabled: false})
	e.onPoint("system.cpu", metrics.Point{Value: 0.9})
	assert.Empty(t, e.ActiveAlerts())
}

func TestAlertResolvesAfterFiveConsecutivePasses(t *testing.T) {
	e := NewEngine()
	e.AddRule(Rule{
		ID: "cpu-high", Metric: "system.cpu", Condition: ConditionGT,
		Threshold: 0.9, Severity: LevelWarning, Enabled: true,
	})

	e.onPoint("system.cpu", metrics.Point{Value: 0.95})
	require.Len(t, e.ActiveAlerts(), 1)

	for i := 0; i < 5; i++ {
		e.onPoint("system.cpu", metrics.Point{Value: 0.1})
	}

	assert.Empty(t, e.ActiveAlerts())
	history := e.History()
	require.NotEmpty(t, history)
	assert.True(t, history[len(history)-1].Resolved)
	assert.Equal(t, "condition_resolved", history[len(history)-1].ResolutionReason)
}

func TestAcknowledgeMarksHistoryEntry(t *testing.T) {
	e := NewEngine()
	e.AddRule(Rule{ID: "r", Metric: "m", Condition: ConditionGTE, Threshold: 1, Enabled: true})
	e.onPoint("m", metrics.Point{Value: 2})

	require.Len(t, e.History(), 1)
	id := e.History()[0].ID
	assert.True(t, e.Acknowledge(id))
	assert.True(t, e.History()[0].Acknowledged)
}

func TestPanickingActionDoesNotBlockOthers(t *testing.T) {
	e := NewEngine()
	ran := false
	e.RegisterAction("boom", func(ctx context.Context, a *Alert) error { panic("boom") })
	e.RegisterAction("ok", func(ctx context.Context, a *Alert) error { ran = true; return nil })
	e.AddRule(Rule{ID: "r", Metric: "m", Condition: ConditionGT, Threshold: 0, Actions: []string{"boom", "ok"}, Enabled: true})

	e.onPoint("m", metrics.Point{Value: 1})
	assert.True(t, ran)
}

func TestAttachToStoreDeliversBothPaths(t *testing.T) {
	store := metrics.NewStore(time.Hour)
	e := NewEngine()
	e.AttachToStore(store)
	e.AddRule(Rule{ID: "r", Metric: "queue.depth", Condition: ConditionGT, Threshold: 10, Enabled: true})
	e.AddRule(Rule{ID: "cpu", Metric: "system.cpu", Condition: ConditionGT, Threshold: 0.9, Enabled: true})

	store.Record("queue.depth", 20, nil)
	store.Flush()

	assert.Len(t, e.ActiveAlerts(), 1)

	// system.cpu is a critical metric: it reaches the engine without a Flush.
	store.Record("system.cpu", 0.95, nil)
	assert.Len(t, e.ActiveAlerts(), 2)
}
