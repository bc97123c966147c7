package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndFlushAggregates(t *testing.T) {
	s := NewStore(time.Hour)
	s.Record("queue.depth", 1, nil)
	s.Record("queue.depth", 3, nil)
	s.Flush()

	series, ok := s.Get("queue.depth")
	require.True(t, ok)
	assert.Equal(t, int64(2), series.Aggregations.Count)
	assert.Equal(t, 2.0, series.Aggregations.Avg)
	assert.Equal(t, 1.0, series.Aggregations.Min)
	assert.Equal(t, 3.0, series.Aggregations.Max)
}

func TestFlushEmptyBufferIsNoOp(t *testing.T) {
	s := NewStore(time.Hour)
	s.Flush()
	s.Flush()
	assert.Empty(t, s.Names())
}

func TestCriticalMetricBypassesBuffer(t *testing.T) {
	s := NewStore(time.Hour)
	delivered := false
	s.OnCritical = func(name string, p Point) { delivered = true }

	s.Record("system.cpu", 0.9, nil)
	assert.True(t, delivered)

	series, ok := s.Get("system.cpu")
	require.True(t, ok)
	assert.Equal(t, int64(1), series.Aggregations.Count)
}

func TestRetentionEvictsOldPoints(t *testing.T) {
	s := NewStore(10 * time.Millisecond)
	s.Record("tmp.metric", 1, nil)
	s.Flush()
	time.Sleep(20 * time.Millisecond)
	s.Flush()
	_, ok := s.Get("tmp.metric")
	assert.False(t, ok, "series should be garbage-collected once empty")
}
