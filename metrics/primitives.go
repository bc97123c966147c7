package metrics

import (
	"math"
	"sync/atomic"
)

// Counter is a monotonically increasing atomic counter, grounded on the
// teacher's concurrency/metrics.go Counter primitive.
type Counter struct {
	value uint64
}

func (c *Counter) Inc()            { atomic.AddUint64(&c.value, 1) }
func (c *Counter) Add(delta uint64) { atomic.AddUint64(&c.value, delta) }
func (c *Counter) Get() uint64      { return atomic.LoadUint64(&c.value) }
func (c *Counter) Reset()           { atomic.StoreUint64(&c.value, 0) }

// Gauge is an atomic float64 value, encoded via math.Float64bits so it can
// be read/written with a CAS loop without a mutex.
type Gauge struct {
	bits uint64
}

func (g *Gauge) Set(v float64) {
	atomic.StoreUint64(&g.bits, math.Float64bits(v))
}

func (g *Gauge) Get() float64 {
	return math.Float64frombits(atomic.LoadUint64(&g.bits))
}

func (g *Gauge) Add(delta float64) {
	for {
		old := atomic.LoadUint64(&g.bits)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&g.bits, old, math.Float64bits(newVal)) {
			return
		}
	}
}
