// Package metrics implements the Metric/Time-Series Store (C3, §4.3): a
// buffered point recorder with incremental per-series aggregation, a
// retention window, and a synchronous bypass for a fixed set of "critical"
// metric names that must reach the Alert Engine without buffering delay.
package metrics

import (
	"sync"
	"time"
)

// criticalNames bypass the buffer and are delivered synchronously to
// whatever OnCritical handler is registered (§4.3).
var criticalNames = map[string]bool{
	"system.cpu":    true,
	"system.memory": true,
	"system.disk":   true,
	"agent.health":  true,
	"task.failed":   true,
	"error.count":   true,
}

// Point is one recorded sample.
type Point struct {
	Timestamp time.Time
	Value     float64
	Tags      map[string]string
}

// Aggregations are incrementally maintained on every flush.
type Aggregations struct {
	Min   float64
	Max   float64
	Avg   float64
	Sum   float64
	Count int64
}

// Series is the retained point history and aggregations for one metric
// name.
type Series struct {
	Name         string
	Points       []Point
	Aggregations Aggregations
	LastUpdated  time.Time
}

type bufferedPoint struct {
	name  string
	point Point
}

// Store buffers recorded points and flushes them on a cadence (or on
// demand via Flush), updating each series's incremental aggregations.
// All operations are safe for concurrent Record calls from multiple
// producers, per §4.3's "safe against concurrent record calls" requirement.
type Store struct {
	mu        sync.Mutex
	series    map[string]*Series
	buffer    []bufferedPoint
	retention time.Duration

	// OnCritical, if set, is invoked synchronously for every recorded point
	// whose metric name is in the fixed critical set, before Record
	// returns. This is the Alert Engine's synchronous delivery path.
	OnCritical func(name string, p Point)

	// OnFlushed, if set, is invoked once per buffered point at the end of
	// Flush, after every point is applied and retention has run — the Alert
	// Engine's non-critical delivery path, one tick behind Record.
	OnFlushed func(name string, p Point)
}

// NewStore constructs a Store retaining points for `retention`.
func NewStore(retention time.Duration) *Store {
	return &Store{
		series:    make(map[string]*Series),
		retention: retention,
	}
}

// Record buffers a point for name, bypassing the buffer with synchronous
// delivery when name is a critical metric.
func (s *Store) Record(name string, value float64, tags map[string]string) {
	point := Point{Timestamp: time.Now(), Value: value, Tags: tags}

	if criticalNames[name] {
		s.mu.Lock()
		s.applyPoint(name, point)
		s.mu.Unlock()
		if s.OnCritical != nil {
			s.OnCritical(name, point)
		}
		return
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, bufferedPoint{name: name, point: point})
	s.mu.Unlock()
}

// Flush drains the buffer into each series's points and aggregations, then
// evicts points older than the retention window and garbage-collects series
// left with no points. Flushing an empty buffer adds and delivers no points
// (§8); it still applies retention eviction.
func (s *Store) Flush() {
	s.mu.Lock()

	flushed := s.buffer
	for _, bp := range flushed {
		s.applyPoint(bp.name, bp.point)
	}
	s.buffer = nil

	cutoff := time.Now().Add(-s.retention)
	for name, series := range s.series {
		kept := series.Points[:0]
		for _, p := range series.Points {
			if p.Timestamp.After(cutoff) {
				kept = append(kept, p)
			}
		}
		series.Points = kept
		if len(series.Points) == 0 {
			delete(s.series, name)
			continue
		}
		s.recomputeAggregations(series)
	}
	s.mu.Unlock()

	if s.OnFlushed != nil {
		for _, bp := range flushed {
			s.OnFlushed(bp.name, bp.point)
		}
	}
}

// applyPoint appends point to name's series (creating it if absent) and
// incrementally updates its aggregations. Caller must hold s.mu.
func (s *Store) applyPoint(name string, p Point) {
	series, ok := s.series[name]
	if !ok {
		series = &Series{Name: name}
		s.series[name] = series
	}
	series.Points = append(series.Points, p)
	series.LastUpdated = p.Timestamp

	agg := &series.Aggregations
	if agg.Count == 0 {
		agg.Min = p.Value
		agg.Max = p.Value
	} else {
		if p.Value < agg.Min {
			agg.Min = p.Value
		}
		if p.Value > agg.Max {
			agg.Max = p.Value
		}
	}
	agg.Sum += p.Value
	agg.Count++
	agg.Avg = agg.Sum / float64(agg.Count)
}

// recomputeAggregations rebuilds a series's aggregations from its retained
// points after eviction, since incremental min/max cannot be decremented.
func (s *Store) recomputeAggregations(series *Series) {
	var agg Aggregations
	for i, p := range series.Points {
		if i == 0 || p.Value < agg.Min {
			agg.Min = p.Value
		}
		if i == 0 || p.Value > agg.Max {
			agg.Max = p.Value
		}
		agg.Sum += p.Value
	}
	agg.Count = int64(len(series.Points))
	if agg.Count > 0 {
		agg.Avg = agg.Sum / float64(agg.Count)
	}
	series.Aggregations = agg
}

// Get returns a snapshot copy of a series, or false if it does not exist
// (either never recorded, or garbage-collected after its points expired).
func (s *Store) Get(name string) (Series, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	series, ok := s.series[name]
	if !ok {
		return Series{}, false
	}
	cp := *series
	cp.Points = append([]Point(nil), series.Points...)
	return cp, true
}

// Range returns the points of a series within [from, to], alongside the
// series's current aggregations — the data contract getDashboardData
// composes panels from (§4.4).
func (s *Store) Range(name string, from, to time.Time) ([]Point, Aggregations) {
	s.mu.Lock()
	defer s.mu.Unlock()
	series, ok := s.series[name]
	if !ok {
		return nil, Aggregations{}
	}
	var out []Point
	for _, p := range series.Points {
		if !p.Timestamp.Before(from) && !p.Timestamp.After(to) {
			out = append(out, p)
		}
	}
	return out, series.Aggregations
}

// Names returns the currently retained series names.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	return names
}
