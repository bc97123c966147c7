package alert

import (
	"time"

	"github.com/orchestrace/control-plane/metrics"
)

// Panel is one named series slice with its aggregations, as rendered on a
// dashboard.
type Panel struct {
	Metric       string
	Points       []metrics.Point
	Aggregations metrics.Aggregations
}

// DashboardData is the read model composed from the metric store and the
// alert engine for display (§4.4's "getDashboardData").
type DashboardData struct {
	Panels       []Panel
	ActiveAlerts []Alert
	RecentAlerts []Alert
}

// DashboardSnapshot builds a DashboardData from store, ranging each of the
// given metric names over [from, to] and merging in the engine's current
// active and recent alert state.
func (e *Engine) DashboardSnapshot(store *metrics.Store, metricNames []string, from, to time.Time) DashboardData {
	panels := make([]Panel, 0, len(metricNames))
	for _, name := range metricNames {
		points, agg := store.Range(name, from, to)
		panels = append(panels, Panel{Metric: name, Points: points, Aggregations: agg})
	}

	history := e.History()
	recent := history
	if len(recent) > 50 {
		recent = recent[len(recent)-50:]
	}

	return DashboardData{
		Panels:       panels,
		ActiveAlerts: e.ActiveAlerts(),
		RecentAlerts: recent,
	}
}
