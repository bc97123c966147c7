package health

import (
	"context"
	"sync"
	"time"

	"github.com/orchestrace/control-plane/breaker"
	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/log"
)

// RestartFunc is how the monitor asks the agent manager to restart an agent;
// supplied by whoever owns agent lifecycle so this package never imports it.
type RestartFunc func(ctx context.Context, agentID, reason string) error

// Config tunes the monitor's check cadence and restart policy.
type Config struct {
	HeartbeatInterval time.Duration
	AutoRestart       bool
	HistorySize       int
}

// Monitor computes per-agent composite health scores and Issues on each
// CheckAgent call, returning the Issues to the caller, and drives the
// separate heartbeat watchdog. It runs no timer of its own.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	bus     *eventbus.Bus
	cb      *breaker.Breaker
	restart RestartFunc
	history map[string]*History
}

// New constructs a Monitor. cb may be nil to skip circuit-breaking the
// restart call (tests commonly do this).
func New(cfg Config, bus *eventbus.Bus, cb *breaker.Breaker, restart RestartFunc) *Monitor {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return &Monitor{
		cfg:     cfg,
		bus:     bus,
		cb:      cb,
		restart: restart,
		history: make(map[string]*History),
	}
}

// Score computes the four-component composite for one agent snapshot,
// per §4.5's formula.
func Score(a AgentSnapshot, heartbeatInterval time.Duration) Scores {
	s := Scores{
		Responsiveness: responsiveness(a.LastHeartbeat, heartbeatInterval),
		Performance:    performance(a.RecentExecTimes, a.ExpectedExecTime),
		Reliability:    reliability(a.TasksCompleted, a.TasksFailed),
		ResourceUsage:  resourceUsage(a.Resources),
	}
	s.Overall = (s.Responsiveness + s.Performance + s.Reliability + s.ResourceUsage) / 4
	return s
}

func responsiveness(lastHeartbeat time.Time, interval time.Duration) float64 {
	if interval <= 0 {
		return 1.0
	}
	since := time.Since(lastHeartbeat)
	switch {
	case since < interval*2:
		return 1.0
	case since < interval*3:
		return 0.5
	default:
		return 0
	}
}

func performance(samples []time.Duration, expected time.Duration) float64 {
	if len(samples) == 0 || expected <= 0 {
		return 1.0
	}
	n := len(samples)
	if n > 10 {
		samples = samples[n-10:]
		n = 10
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	avg := total / time.Duration(n)
	if avg <= 0 {
		return 1.0
	}
	ratio := float64(expected) / float64(avg)
	return clamp01(ratio)
}

func reliability(completed, failed int64) float64 {
	total := completed + failed
	if total == 0 {
		return 1.0
	}
	return float64(completed) / float64(total)
}

func resourceUsage(r ResourceUsage) float64 {
	components := []float64{
		usageComponent(r.Memory, r.MemoryLimit),
		usageComponent(r.CPU, r.CPULimit),
		usageComponent(r.Disk, r.DiskLimit),
	}
	return (components[0] + components[1] + components[2]) / 3
}

func usageComponent(usage, limit int64) float64 {
	if limit <= 0 {
		return 1.0
	}
	return clamp01(1 - float64(usage)/float64(limit))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func classify(overall float64) Status {
	switch {
	case overall >= 0.8:
		return StatusHealthy
	case overall >= 0.4:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// CheckAgent scores one agent, records it in history, returns Issues for any
// component under the healthy band, and schedules a restart if overall falls
// below 0.3 and auto-restart is enabled.
func (m *Monitor) CheckAgent(ctx context.Context, a AgentSnapshot) (Scores, []Issue) {
	scores := Score(a, m.cfg.HeartbeatInterval)
	status := classify(scores.Overall)

	m.mu.Lock()
	h, ok := m.history[a.AgentID]
	if !ok {
		h = NewHistory(m.cfg.HistorySize)
		m.history[a.AgentID] = h
	}
	h.Add(Record{Timestamp: time.Now(), Scores: scores, Status: status})
	m.mu.Unlock()

	issues := m.issuesFor(a.AgentID, scores)

	if scores.Overall < 0.3 && m.cfg.AutoRestart {
		m.scheduleRestart(ctx, a.AgentID, "overall health below 0.3")
	}

	return scores, issues
}

func (m *Monitor) issuesFor(agentID string, s Scores) []Issue {
	components := map[string]float64{
		"responsiveness": s.Responsiveness,
		"performance":     s.Performance,
		"reliability":     s.Reliability,
		"resourceUsage":   s.ResourceUsage,
	}
	now := time.Now()
	var issues []Issue
	for name, score := range components {
		sev, bad := bandSeverity(score)
		if !bad {
			continue
		}
		issues = append(issues, Issue{
			AgentID: agentID, Component: name, Score: score,
			Severity: sev, Timestamp: now,
		})
	}
	return issues
}

func (m *Monitor) scheduleRestart(ctx context.Context, agentID, reason string) {
	if m.restart == nil {
		return
	}
	go func() {
		var err error
		if m.cb != nil {
			err = m.cb.Execute(ctx, func(ctx context.Context) error {
				return m.restart(ctx, agentID, reason)
			})
		} else {
			err = m.restart(ctx, agentID, reason)
		}
		if err != nil {
			log.ErrorLog.Printf("health monitor: restart of agent %s failed: %v", agentID, err)
		}
	}()
}

// Trend returns the health trend classification for an agent over its last
// `samples` recorded checks.
func (m *Monitor) Trend(agentID string, samples int) string {
	m.mu.Lock()
	h, ok := m.history[agentID]
	m.mu.Unlock()
	if !ok {
		return "stable"
	}
	return h.Trend(samples)
}

// History returns the most recent records for an agent, newest first.
func (m *Monitor) History(agentID string, n int) []Record {
	m.mu.Lock()
	h, ok := m.history[agentID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return h.Recent(n)
}

// CheckHeartbeats is the separate heartbeat timer (§4.5): any agent whose
// last heartbeat exceeds interval*3 and is neither offline nor terminated is
// reported via HeartbeatTimeoutPayload on eventbus.TopicHeartbeatTimeout, and
// a restart is scheduled if auto-restart is enabled. Returns the agent ids
// that timed out.
func (m *Monitor) CheckHeartbeats(ctx context.Context, agents []AgentSnapshot) []string {
	interval := m.cfg.HeartbeatInterval
	if interval <= 0 {
		return nil
	}
	var timedOut []string
	for _, a := range agents {
		if a.Offline || a.Terminated {
			continue
		}
		if time.Since(a.LastHeartbeat) <= interval*3 {
			continue
		}
		timedOut = append(timedOut, a.AgentID)
		if m.bus != nil {
			m.bus.Emit(eventbus.TopicHeartbeatTimeout, eventbus.HeartbeatTimeoutPayload{
				AgentID:       a.AgentID,
				LastHeartbeat: a.LastHeartbeat.Unix(),
			})
		}
		if m.cfg.AutoRestart {
			m.scheduleRestart(ctx, a.AgentID, "heartbeat timeout")
		}
	}
	return timedOut
}
