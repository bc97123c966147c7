package alert

import (
	"github.com/orchestrace/control-plane/config"
)

// metricNameForThreshold maps a config.AlertThreshold key to the metric
// name that rule observes.
var metricNameForThreshold = map[string]string{
	"cpu":              "system.cpu",
	"memory":           "system.memory",
	"disk":             "system.disk",
	"errorRate":        "error.rate",
	"responseTime":     "task.responseTime",
	"queueDepth":       "queue.depth",
	"agentHealth":      "agent.health",
	"swarmUtilization": "swarm.utilization",
}

// lowerIsWorse is true for thresholds where crossing below the band is the
// unhealthy direction (agentHealth: lower is worse, everything else in the
// catalogue trips on "too high").
var lowerIsWorse = map[string]bool{
	"agentHealth": true,
}

// DefaultRules builds the warning/critical rule pairs for every threshold in
// cfg.AlertThresholds (§6), each pair sharing a metric but differing in
// severity and threshold value. Actions default to "log"; callers add
// email/webhook/auto-scale/restart via AddRule after registering the
// corresponding action.
func DefaultRules(cfg *config.Config) []Rule {
	rules := make([]Rule, 0, len(cfg.AlertThresholds)*2)
	for key, band := range cfg.AlertThresholds {
		metric, ok := metricNameForThreshold[key]
		if !ok {
			continue
		}
		warnCond, critCond := ConditionGTE, ConditionGTE
		if lowerIsWorse[key] {
			warnCond, critCond = ConditionLTE, ConditionLTE
		}
		rules = append(rules,
			Rule{
				ID: key + "-warning", Metric: metric, Condition: warnCond,
				Threshold: band.Warning, Severity: LevelWarning,
				Actions: []string{"log"}, Enabled: true,
			},
			Rule{
				ID: key + "-critical", Metric: metric, Condition: critCond,
				Threshold: band.Critical, Severity: LevelCritical,
				Actions: []string{"log"}, Enabled: true,
			},
		)
	}
	return rules
}
