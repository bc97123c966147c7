// Package alert implements the Alert Engine (C4, §4.4): rule evaluation
// against the metric stream, alert firing/resolution, pluggable actions,
// and a read-only dashboard data contract.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orchestrace/control-plane/log"
	"github.com/orchestrace/control-plane/metrics"
)

// Condition is one of the five comparisons an AlertRule may use.
type Condition string

const (
	ConditionGT  Condition = "gt"
	ConditionGTE Condition = "gte"
	ConditionLT  Condition = "lt"
	ConditionLTE Condition = "lte"
	ConditionEQ  Condition = "eq"
)

func (c Condition) holds(value, threshold float64) bool {
	switch c {
	case ConditionGT:
		return value > threshold
	case ConditionGTE:
		return value >= threshold
	case ConditionLT:
		return value < threshold
	case ConditionLTE:
		return value <= threshold
	case ConditionEQ:
		return value == threshold
	default:
		return false
	}
}

// Level is an alert's severity.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Rule is an AlertRule (§3).
type Rule struct {
	ID        string
	Metric    string
	Condition Condition
	Threshold float64
	Duration  time.Duration
	Severity  Level
	Actions   []string
	Enabled   bool
}

// Alert is a materialized firing of a Rule.
type Alert struct {
	ID              string
	RuleID          string
	Level           Level
	Metric          string
	Value           float64
	Threshold       float64
	Timestamp       time.Time
	Acknowledged    bool
	Resolved        bool
	ResolvedAt      time.Time
	ResolutionReason string
	EscalationLevel int
}

// resolveSamples is how many trailing points must all fail a rule's
// condition before its alert resolves (§4.4, "k = 5").
const resolveSamples = 5

// maxHistory is the retained-alert cap (§5's "Alerts history is capped at
// 1000 entries").
const maxHistory = 1000

// purgeAfter drops resolved alerts older than this from history (§4.4).
const purgeAfter = 24 * time.Hour

// ActionFunc executes one alert action (log, email, webhook, auto-scale,
// restart, ...). A failing action is caught per-action and logged; it never
// prevents the others from running.
type ActionFunc func(ctx context.Context, a *Alert) error

type activeKey struct {
	ruleID string
	metric string
}

// Engine evaluates rules against an inbound metric stream.
type Engine struct {
	mu      sync.Mutex
	rules   map[string]*Rule
	active  map[activeKey]*Alert
	history []*Alert
	recent  map[string][]float64 // metric -> last resolveSamples values
	actions map[string]ActionFunc
	nextID  uint64
}

// NewEngine constructs an empty Engine. Register actions with RegisterAction
// before rules can fire meaningfully.
func NewEngine() *Engine {
	return &Engine{
		rules:   make(map[string]*Rule),
		active:  make(map[activeKey]*Alert),
		recent:  make(map[string][]float64),
		actions: make(map[string]ActionFunc),
	}
}

// AttachToStore wires the engine as both the synchronous-critical and
// buffered delivery sink of a metrics.Store.
func (e *Engine) AttachToStore(store *metrics.Store) {
	store.OnCritical = e.onPoint
	store.OnFlushed = e.onPoint
}

// RegisterAction installs the handler invoked when a firing rule lists
// `name` in its Actions.
func (e *Engine) RegisterAction(name string, fn ActionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions[name] = fn
}

// AddRule installs or replaces a rule.
func (e *Engine) AddRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rc := r
	e.rules[r.ID] = &rc
}

func (e *Engine) onPoint(metricName string, p metrics.Point) {
	e.mu.Lock()
	var toFire []*Alert
	var toResolve []*Alert

	samples := append(e.recent[metricName], p.Value)
	if len(samples) > resolveSamples {
		samples = samples[len(samples)-resolveSamples:]
	}
	e.recent[metricName] = samples

	for _, rule := range e.rules {
		if !rule.Enabled || rule.Metric != metricName {
			continue
		}
		key := activeKey{ruleID: rule.ID, metric: metricName}
		holds := rule.Condition.holds(p.Value, rule.Threshold)

		if active, ok := e.active[key]; ok {
			if len(samples) == resolveSamples && allFail(rule, samples) {
				active.Resolved = true
				active.ResolvedAt = time.Now()
				active.ResolutionReason = "condition_resolved"
				delete(e.active, key)
				toResolve = append(toResolve, active)
			}
			continue
		}

		if holds {
			e.nextID++
			a := &Alert{
				ID:        fmt.Sprintf("alert-%d", e.nextID),
				RuleID:    rule.ID,
				Level:     rule.Severity,
				Metric:    metricName,
				Value:     p.Value,
				Threshold: rule.Threshold,
				Timestamp: time.Now(),
			}
			e.active[key] = a
			e.appendHistory(a)
			toFire = append(toFire, a)
		}
	}
	e.purgeLocked()
	e.mu.Unlock()

	for _, a := range toFire {
		e.runActions(a)
	}
	for _, a := range toResolve {
		log.InfoLog.Printf("alert %s resolved: %s", a.ID, a.ResolutionReason)
	}
}

func allFail(rule *Rule, samples []float64) bool {
	for _, v := range samples {
		if rule.Condition.holds(v, rule.Threshold) {
			return false
		}
	}
	return true
}

func (e *Engine) appendHistory(a *Alert) {
	e.history = append(e.history, a)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}

func (e *Engine) purgeLocked() {
	cutoff := time.Now().Add(-purgeAfter)
	kept := e.history[:0]
	for _, a := range e.history {
		if a.Resolved && a.ResolvedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	e.history = kept
}

// namedAction pairs a rule-declared action name with its resolved function,
// so logging can always name the action actually being run.
type namedAction struct {
	name string
	fn   ActionFunc
}

func (e *Engine) runActions(a *Alert) {
	e.mu.Lock()
	rule, ok := e.rules[a.RuleID]
	var resolved []namedAction
	if ok {
		for _, name := range rule.Actions {
			if fn, ok := e.actions[name]; ok {
				resolved = append(resolved, namedAction{name: name, fn: fn})
			}
		}
	}
	e.mu.Unlock()

	ctx := context.Background()
	for _, na := range resolved {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.ErrorLog.Printf("alert action %q panicked: %v", na.name, r)
				}
			}()
			if err := na.fn(ctx, a); err != nil {
				log.ErrorLog.Printf("alert action %q failed for %s: %v", na.name, a.ID, err)
			}
		}()
	}
}

// Acknowledge marks an alert as acknowledged.
func (e *Engine) Acknowledge(alertID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.history {
		if a.ID == alertID {
			a.Acknowledged = true
			return true
		}
	}
	return false
}

// ActiveAlerts returns a snapshot of every currently unresolved alert.
func (e *Engine) ActiveAlerts() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, *a)
	}
	return out
}

// History returns a snapshot of the retained alert history (fired and
// resolved, subject to the 1000-entry cap and 24h purge of resolved ones).
func (e *Engine) History() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, len(e.history))
	for i, a := range e.history {
		out[i] = *a
	}
	return out
}
