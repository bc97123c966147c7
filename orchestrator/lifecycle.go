package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/log"
	"github.com/orchestrace/control-plane/queue"
	"github.com/orchestrace/control-plane/session"
)

// componentRetryAttempts and componentRetryDelay govern how hard Initialize
// tries to bring up each named component before giving up (§4.9).
const (
	componentRetryAttempts = 3
	componentRetryDelay    = 2 * time.Second
)

// highPriorityThreshold marks a task as worth draining best-effort during
// shutdown rather than abandoning outright (§4.9).
const highPriorityThreshold = 90

// Initialize brings the orchestrator fully online: components, the MCP
// server, session restoration, and the periodic timers (event handlers are
// already wired by New). Any
// failure triggers an emergency shutdown of whatever already started before
// the error is returned to the caller.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.state.mu.Lock()
	if o.state.initialized {
		o.state.mu.Unlock()
		return fmt.Errorf("orchestrator already initialized")
	}
	o.state.mu.Unlock()

	if err := o.startComponents(ctx); err != nil {
		o.emergencyShutdown(ctx)
		return fmt.Errorf("starting components: %w", err)
	}

	if err := o.MCP.Start(ctx); err != nil {
		o.emergencyShutdown(ctx)
		return fmt.Errorf("starting mcp server: %w", err)
	}

	if err := o.Sessions.RestoreSessions(); err != nil {
		log.WarningLog.Printf("restoring sessions: %v", err)
	}

	o.startTimers()

	o.state.mu.Lock()
	o.state.initialized = true
	o.state.startTime = time.Now()
	o.state.mu.Unlock()

	o.bus.Emit(eventbus.TopicSystemReady, struct{}{})
	return nil
}

// startComponents brings up every named component, retrying each one
// independently up to componentRetryAttempts times with a fixed delay.
func (o *Orchestrator) startComponents(ctx context.Context) error {
	for _, c := range o.components {
		var lastErr error
		for attempt := 1; attempt <= componentRetryAttempts; attempt++ {
			if lastErr = c.Start(ctx); lastErr == nil {
				break
			}
			log.WarningLog.Printf("component %s: start attempt %d/%d failed: %v", c.Name(), attempt, componentRetryAttempts, lastErr)
			if attempt < componentRetryAttempts {
				time.Sleep(componentRetryDelay)
			}
		}
		if lastErr != nil {
			return fmt.Errorf("component %s: %w", c.Name(), lastErr)
		}
	}
	return nil
}

// Shutdown persists sessions, drains high-priority work best-effort, and
// tears every component down within cfg.ShutdownTimeoutMs (§4.9).
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.state.mu.Lock()
	if o.state.shutdownInProgress {
		o.state.mu.Unlock()
		return nil
	}
	o.state.shutdownInProgress = true
	o.state.mu.Unlock()

	o.stopTimers()

	o.state.mu.Lock()
	metrics := o.state.metrics
	o.state.mu.Unlock()
	if err := o.Sessions.PersistSessions(ctx, session.Metrics{
		CompletedTasks:    metrics.CompletedTasks,
		FailedTasks:       metrics.FailedTasks,
		TotalTaskDuration: metrics.TotalTaskDuration,
	}); err != nil {
		log.WarningLog.Printf("persisting sessions during shutdown: %v", err)
	}
	o.drainHighPriorityTasks(ctx)
	if err := o.Sessions.TerminateAllSessions(); err != nil {
		log.WarningLog.Printf("terminating sessions during shutdown: %v", err)
	}

	timeout := time.Duration(o.cfg.ShutdownTimeoutMs) * time.Millisecond
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	o.stopComponentsConcurrently(shutdownCtx)

	if err := o.MCP.Stop(shutdownCtx); err != nil {
		log.WarningLog.Printf("stopping mcp server: %v", err)
	}

	o.bus.Emit(eventbus.TopicSystemShutdown, struct{}{})
	return nil
}

// emergencyShutdown best-effort tears down whatever partial state exists
// after a failed Initialize; it never returns an error of its own since the
// caller is already propagating one.
func (o *Orchestrator) emergencyShutdown(ctx context.Context) {
	log.ErrorLog.Printf("orchestrator: emergency shutdown after failed initialization")
	o.stopTimers()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	o.stopComponentsConcurrently(shutdownCtx)
	if err := o.MCP.Stop(shutdownCtx); err != nil {
		log.WarningLog.Printf("emergency shutdown: stopping mcp server: %v", err)
	}
}

func (o *Orchestrator) stopComponentsConcurrently(ctx context.Context) {
	done := make(chan struct{}, len(o.components))
	for _, c := range o.components {
		go func(c component) {
			if err := c.Stop(ctx); err != nil {
				log.WarningLog.Printf("component %s: stop failed: %v", c.Name(), err)
			}
			done <- struct{}{}
		}(c)
	}
	for range o.components {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

// drainHighPriorityTasks gives tasks at or above highPriorityThreshold (or
// explicitly marked critical) a window to finish before the process tears
// the rest of the system down; it never blocks past the shutdown timeout.
func (o *Orchestrator) drainHighPriorityTasks(ctx context.Context) {
	deadline := time.Now().Add(time.Duration(o.cfg.ShutdownTimeoutMs) * time.Millisecond / 2)
	for time.Now().Before(deadline) {
		pending := 0
		for _, t := range o.Tasks.List() {
			if !isHighPriority(t) {
				continue
			}
			switch t.Status {
			case queue.StatusQueued, queue.StatusAssigned, queue.StatusRunning:
				pending++
			}
		}
		if pending == 0 {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func isHighPriority(t queue.Task) bool {
	if t.Priority >= highPriorityThreshold {
		return true
	}
	if t.Metadata == nil {
		return false
	}
	critical, _ := t.Metadata["critical"].(bool)
	return critical
}
