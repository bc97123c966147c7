package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/alert"
	"github.com/orchestrace/control-plane/breaker"
	"github.com/orchestrace/control-plane/capability"
	"github.com/orchestrace/control-plane/config"
	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/health"
	"github.com/orchestrace/control-plane/mcpserver"
	"github.com/orchestrace/control-plane/metrics"
	"github.com/orchestrace/control-plane/queue"
	"github.com/orchestrace/control-plane/session"
)

// Orchestrator owns every component's lifecycle and the cross-component
// wiring between them.
type Orchestrator struct {
	cfg   *config.Config
	bus   *eventbus.Bus
	state *state

	breakers *breaker.Set

	Agents   *agent.Manager
	Sessions *session.Manager
	Tasks    *queue.Manager
	Health   *health.Monitor
	Alerts   *alert.Engine
	Metrics  *metrics.Store
	MCP      MCPServer

	components []component

	telemetry   map[string]*agentTelemetry
	telemetryMu sync.Mutex

	timers []*time.Ticker
	stopCh chan struct{}

	defaultTemplate string
}

// agentTelemetry holds the runtime data the Agent Manager itself does not
// track (heartbeats and resource usage arrive as events, not state the
// process-lifecycle owner needs).
type agentTelemetry struct {
	lastHeartbeat time.Time
	resources     health.ResourceUsage
}

// New wires every component together. store may be a persistence-backed
// agent.Store (e.g. one backed by the session memory bank); nil runs
// without agent-state persistence.
func New(cfg *config.Config, store agent.Store) *Orchestrator {
	bus := eventbus.New()
	breakers := breaker.NewDefaultSet()
	metricsStore := metrics.NewStore(time.Duration(cfg.TaskHistoryRetentionMs) * time.Millisecond)

	agents := agent.New(cfg, bus, store)
	sessions := session.New(breakers.SessionPersistence)
	matcher := capability.NewMatcher()
	tasks := queue.New(cfg.TaskQueueSize, agents, matcher, bus, breakers.TaskAssignment)

	o := &Orchestrator{
		cfg: cfg, bus: bus, state: newState(), breakers: breakers,
		Agents: agents, Sessions: sessions, Tasks: tasks, Metrics: metricsStore,
		telemetry:       make(map[string]*agentTelemetry),
		stopCh:          make(chan struct{}),
		defaultTemplate: "developer",
	}

	o.Health = health.New(health.Config{
		HeartbeatInterval: time.Duration(cfg.HeartbeatIntervalMs) * time.Millisecond,
		AutoRestart:       cfg.AutoRestart,
		HistorySize:       20,
	}, bus, breakers.HealthCheck, o.restartAgent)

	o.Alerts = alert.NewEngine()
	o.Alerts.AttachToStore(metricsStore)
	o.Alerts.RegisterAction("log", alert.LogAction)
	o.Alerts.RegisterAction("auto-scale", alert.AutoScaleAction(scalerAdapter{o}))
	o.Alerts.RegisterAction("restart", alert.RestartAction(restarterAdapter{o}))
	for _, r := range alert.DefaultRules(cfg) {
		o.Alerts.AddRule(r)
	}

	o.MCP = mcpserver.New(agents, o.Health, o.Alerts)

	o.components = []component{
		newTerminalComponent(), newMemoryComponent(), coordinationComponent{},
	}

	o.wireEventHandlers()

	return o
}

// scalerAdapter satisfies alert.Scaler by spawning one more agent of the
// orchestrator's default template.
type scalerAdapter struct{ o *Orchestrator }

func (s scalerAdapter) ScaleUp(ctx context.Context, reason string) error {
	id, err := s.o.Agents.CreateAgent(s.o.defaultTemplate, nil)
	if err != nil {
		return fmt.Errorf("scale up (%s): %w", reason, err)
	}
	return s.o.Agents.StartAgent(ctx, id)
}

// restarterAdapter satisfies alert.Restarter by restarting the least
// healthy non-terminated agent, since an alert-driven restart names a
// metric, not a specific agent.
type restarterAdapter struct{ o *Orchestrator }

func (r restarterAdapter) Restart(ctx context.Context, reason string) error {
	return r.o.restartLeastHealthy(ctx, reason)
}

func (o *Orchestrator) restartLeastHealthy(ctx context.Context, reason string) error {
	agents := o.Agents.List()
	candidates := make([]agent.Agent, 0, len(agents))
	for _, a := range agents {
		if a.Status == agent.StatusTerminated {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("restart least healthy (%s): no active agents", reason)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Health < candidates[j].Health })
	return o.Agents.RestartAgent(ctx, candidates[0].ID, reason)
}

// restartAgent satisfies health.RestartFunc.
func (o *Orchestrator) restartAgent(ctx context.Context, agentID, reason string) error {
	return o.Agents.RestartAgent(ctx, agentID, reason)
}
