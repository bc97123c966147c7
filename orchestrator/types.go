// Package orchestrator implements the Orchestrator (C9, §4.9): the
// top-level lifecycle owner that brings up every other component, wires
// cross-component event handlers, runs the periodic health/maintenance/
// metrics timers, applies the agent-error and deadlock policies, and tears
// everything down again on shutdown.
package orchestrator

import (
	"sync"
	"time"
)

// Metrics mirrors the orchestrator state's metrics block (§4.9).
type Metrics struct {
	CompletedTasks    int64
	FailedTasks       int64
	TotalTaskDuration time.Duration
}

// taskHistoryEntry is a completed or failed task kept for
// introspection and retention-bounded cleanup, independent of the Task
// Queue's own tracked-task map (which the queue prunes on its own
// schedule too, via PruneCompleted).
type taskHistoryEntry struct {
	taskID      string
	finishedAt  time.Time
	outcome     string
}

// state is the orchestrator's own bookkeeping (§4.9's "State:" block),
// guarded by mu.
type state struct {
	mu                  sync.Mutex
	initialized         bool
	shutdownInProgress  bool
	startTime           time.Time
	taskHistory         map[string]taskHistoryEntry
	metrics             Metrics
	agentErrorCounts    map[string]int
	healthDegraded      bool
	healthDegradedSince time.Time
}

func newState() *state {
	return &state{
		taskHistory:      make(map[string]taskHistoryEntry),
		agentErrorCounts: make(map[string]int),
	}
}
