package orchestrator

import (
	"context"
	"runtime"
	"time"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/log"
	"github.com/orchestrace/control-plane/queue"
)

// taskHistoryRetention bounds how long a finished task stays in the
// orchestrator's own history map before maintenance prunes it.
const taskHistoryRetention = 24 * time.Hour

// startTimers launches the three periodic loops named in §4.9: health
// check, maintenance, and metrics collection. Each runs in its own
// goroutine and stops on o.stopCh.
func (o *Orchestrator) startTimers() {
	healthInterval := time.Duration(o.cfg.HealthCheckIntervalMs) * time.Millisecond
	maintenanceInterval := time.Duration(o.cfg.MaintenanceIntervalMs) * time.Millisecond
	metricsInterval := time.Duration(o.cfg.MetricsIntervalMs) * time.Millisecond

	healthTicker := time.NewTicker(healthInterval)
	maintenanceTicker := time.NewTicker(maintenanceInterval)
	metricsTicker := time.NewTicker(metricsInterval)
	o.timers = []*time.Ticker{healthTicker, maintenanceTicker, metricsTicker}

	go o.runLoop(healthTicker, o.runHealthCheck)
	go o.runLoop(maintenanceTicker, o.runMaintenance)
	go o.runLoop(metricsTicker, o.collectMetrics)
}

func (o *Orchestrator) runLoop(t *time.Ticker, fn func(ctx context.Context)) {
	for {
		select {
		case <-t.C:
			fn(context.Background())
		case <-o.stopCh:
			return
		}
	}
}

// stopTimers stops every periodic loop. Safe to call once; Shutdown and
// emergencyShutdown both call it but a repeat shutdown is guarded upstream
// by state.shutdownInProgress.
func (o *Orchestrator) stopTimers() {
	for _, t := range o.timers {
		t.Stop()
	}
	select {
	case <-o.stopCh:
	default:
		close(o.stopCh)
	}
}

// runMaintenance prunes old terminated sessions and finished tasks, and
// nudges the garbage collector — the orchestrator's own upkeep pass (§4.9).
func (o *Orchestrator) runMaintenance(ctx context.Context) {
	cutoff := time.Now().Add(-taskHistoryRetention)

	prunedSessions := o.Sessions.PruneTerminated(cutoff)
	prunedTasks := o.Tasks.PruneCompleted(cutoff)

	o.state.mu.Lock()
	for id, entry := range o.state.taskHistory {
		if entry.finishedAt.Before(cutoff) {
			delete(o.state.taskHistory, id)
		}
	}
	o.state.mu.Unlock()

	if prunedSessions > 0 || prunedTasks > 0 {
		log.InfoLog.Printf("maintenance: pruned %d sessions, %d tasks", prunedSessions, prunedTasks)
	}
	runtime.GC()
}

// collectMetrics records the point-in-time gauges alert/'s default rules
// evaluate against: queue depth and each agent's current health score. It
// then flushes the metrics store, so buffered points are drained every tick.
func (o *Orchestrator) collectMetrics(ctx context.Context) {
	depth := 0
	for _, t := range o.Tasks.List() {
		switch t.Status {
		case queue.StatusQueued, queue.StatusAssigned:
			depth++
		}
	}
	o.Metrics.Record("queue.depth", float64(depth), nil)

	agents := o.Agents.List()
	active, errored := 0, 0
	for _, a := range agents {
		if a.Status == agent.StatusTerminated {
			continue
		}
		active++
		o.Metrics.Record("agent.health", a.Health, map[string]string{"agentId": a.ID})
		if a.Status == agent.StatusError {
			errored++
		}
	}
	o.Metrics.Record("error.count", float64(errored), nil)
	if active > 0 {
		o.Metrics.Record("error.rate", float64(errored)/float64(active), nil)
	}
	o.Metrics.Flush()
}
