package orchestrator

import (
	"context"
	"time"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/health"
	"github.com/orchestrace/control-plane/log"
)

// healthDegradedReason is recorded when the health-check breaker trips
// repeatedly, so a status query can explain why the system reports degraded
// instead of evaluating agents directly.
const healthDegradedReason = "health check circuit open"

// runHealthCheck builds a snapshot of every non-terminated agent and runs
// it through the Health Monitor, wrapped in the HealthCheck breaker so a
// string of failures degrades the orchestrator's own status rather than
// raising all the way up through the timer loop.
func (o *Orchestrator) runHealthCheck(ctx context.Context) {
	err := o.breakers.HealthCheck.Execute(ctx, func(ctx context.Context) error {
		agents := o.Agents.List()
		snapshots := make([]health.AgentSnapshot, 0, len(agents))
		for _, a := range agents {
			if a.Status == agent.StatusTerminated {
				continue
			}
			snapshots = append(snapshots, o.snapshotFor(a))
		}

		timedOut := o.Health.CheckHeartbeats(ctx, snapshots)
		for _, id := range timedOut {
			log.WarningLog.Printf("agent %s: heartbeat timeout", id)
		}

		for _, s := range snapshots {
			scores, issues := o.Health.CheckAgent(ctx, s)
			if err := o.Agents.SetHealth(s.AgentID, scores.Overall); err != nil {
				log.WarningLog.Printf("agent %s: recording health score: %v", s.AgentID, err)
			}
			for _, issue := range issues {
				log.WarningLog.Printf("agent %s: health issue [%s] %s=%.2f", s.AgentID, issue.Severity, issue.Component, issue.Score)
			}
		}
		return nil
	})

	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	if err != nil {
		if !o.state.healthDegraded {
			o.state.healthDegraded = true
			o.state.healthDegradedSince = time.Now()
			log.ErrorLog.Printf("%s: %v", healthDegradedReason, err)
		}
		return
	}
	o.state.healthDegraded = false
}

// snapshotFor merges an agent's own runtime state with the telemetry the
// orchestrator has collected from its heartbeat/resource-usage events.
func (o *Orchestrator) snapshotFor(a agent.Agent) health.AgentSnapshot {
	o.telemetryMu.Lock()
	t, ok := o.telemetry[a.ID]
	o.telemetryMu.Unlock()

	s := health.AgentSnapshot{
		AgentID:          a.ID,
		RecentExecTimes:  a.RecentExecTimes,
		ExpectedExecTime: time.Duration(o.cfg.DefaultTimeoutMs) * time.Millisecond,
		TasksCompleted:   a.TasksCompleted,
		TasksFailed:      a.TasksFailed,
		Offline:          a.Status == agent.StatusOffline,
		Terminated:       a.Status == agent.StatusTerminated,
	}
	if ok {
		s.LastHeartbeat = t.lastHeartbeat
		s.Resources = t.resources
	}
	return s
}
