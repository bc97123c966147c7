package orchestrator

import (
	"context"
	"time"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/health"
	"github.com/orchestrace/control-plane/log"
)

// maxAgentErrors is how many AGENT_ERROR events an agent may accrue before
// the orchestrator gives up and terminates it permanently rather than
// re-spawning it again (§4.9).
const maxAgentErrors = 3

// agentErrorRestartDelay is how long the orchestrator waits before
// re-spawning an agent under the error threshold.
const agentErrorRestartDelay = 2 * time.Second

// wireEventHandlers subscribes the orchestrator's own cross-component
// policies to the seven topics §4.9 names, plus the telemetry feeds the
// health-check timer needs. The Task Queue and Agent Manager wire their own
// internal handlers independently; multiple subscribers per topic is a
// supported eventbus pattern.
func (o *Orchestrator) wireEventHandlers() {
	o.bus.On(eventbus.TopicTaskStarted, func(payload any) {})

	o.bus.On(eventbus.TopicTaskCompleted, func(payload any) {
		p, ok := payload.(eventbus.TaskCompletedPayload)
		if !ok {
			return
		}
		o.state.mu.Lock()
		o.state.metrics.CompletedTasks++
		o.state.metrics.TotalTaskDuration += time.Duration(p.ExecutionTime) * time.Millisecond
		o.state.taskHistory[p.TaskID] = taskHistoryEntry{taskID: p.TaskID, finishedAt: time.Now(), outcome: "completed"}
		o.state.mu.Unlock()
		o.Metrics.Record("task.responseTime", float64(p.ExecutionTime), map[string]string{"agentId": p.AgentID})
	})

	o.bus.On(eventbus.TopicTaskFailed, func(payload any) {
		p, ok := payload.(eventbus.TaskFailedPayload)
		if !ok {
			return
		}
		o.state.mu.Lock()
		o.state.metrics.FailedTasks++
		o.state.taskHistory[p.TaskID] = taskHistoryEntry{taskID: p.TaskID, finishedAt: time.Now(), outcome: "failed"}
		o.state.mu.Unlock()
	})

	o.bus.On(eventbus.TopicAgentError, func(payload any) {
		p, ok := payload.(eventbus.AgentErrorPayload)
		if !ok {
			return
		}
		o.handleAgentError(p.AgentID)
	})

	o.bus.OnFiltered(eventbus.TopicAgentStatusChanged, func(payload any) bool {
		p, ok := payload.(eventbus.AgentStatusChangedPayload)
		return ok && p.To == string(agent.StatusIdle)
	}, func(payload any) {
		o.Tasks.DriveQueue(context.Background())
	})

	o.bus.On(eventbus.TopicSystemError, func(payload any) {
		log.ErrorLog.Printf("system error event: %+v", payload)
	})

	o.bus.On(eventbus.TopicDeadlockDetected, func(payload any) {
		log.WarningLog.Printf("deadlock detected: %+v (tasks resolved by queue.Manager's own subscription)", payload)
	})

	o.bus.On(eventbus.TopicAgentHeartbeat, func(payload any) {
		p, ok := payload.(eventbus.AgentHeartbeatPayload)
		if !ok {
			return
		}
		o.telemetryMu.Lock()
		t := o.telemetryFor(p.AgentID)
		t.lastHeartbeat = time.UnixMilli(p.Timestamp)
		o.telemetryMu.Unlock()
	})

	o.bus.On(eventbus.TopicResourceUsage, func(payload any) {
		p, ok := payload.(eventbus.ResourceUsagePayload)
		if !ok {
			return
		}
		o.telemetryMu.Lock()
		t := o.telemetryFor(p.AgentID)
		t.resources = health.ResourceUsage{
			Memory: p.MemoryBytes, MemoryLimit: o.cfg.ResourceLimits.Memory,
			CPU: int64(p.CPUFrac * 100), CPULimit: o.cfg.ResourceLimits.CPU,
			Disk: p.DiskBytes, DiskLimit: o.cfg.ResourceLimits.Disk,
		}
		o.telemetryMu.Unlock()
	})
}

// telemetryFor returns (creating if absent) the telemetry record for
// agentID. Callers must hold telemetryMu.
func (o *Orchestrator) telemetryFor(agentID string) *agentTelemetry {
	t, ok := o.telemetry[agentID]
	if !ok {
		t = &agentTelemetry{}
		o.telemetry[agentID] = t
	}
	return t
}

// handleAgentError applies the agent-error policy: a per-agent counter
// under maxAgentErrors gets a delayed restart; at or above it, the agent is
// terminated permanently (§4.9).
func (o *Orchestrator) handleAgentError(agentID string) {
	o.state.mu.Lock()
	o.state.agentErrorCounts[agentID]++
	count := o.state.agentErrorCounts[agentID]
	o.state.mu.Unlock()

	if count < maxAgentErrors {
		go func() {
			time.Sleep(agentErrorRestartDelay)
			if err := o.Agents.RestartAgent(context.Background(), agentID, "agent error recovery"); err != nil {
				log.ErrorLog.Printf("agent %s: error-policy restart failed: %v", agentID, err)
			}
		}()
		return
	}

	if err := o.Agents.RemoveAgent(agentID); err != nil {
		log.ErrorLog.Printf("agent %s: error-policy permanent termination failed: %v", agentID, err)
	}
}
