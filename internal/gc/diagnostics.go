package gc

import (
	"math"
	"runtime/metrics"
	"sync/atomic"
)

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// MemorySampler returns the current memory usage in megabytes.
type MemorySampler func() int64

// HeapUsageMB returns the heap occupied by objects, in megabytes, rounded.
// It reads runtime/metrics and does not stop the world.
func HeapUsageMB() int64 {
	sample := []metrics.Sample{{Name: heapObjectsMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return int64(math.Round(float64(sample[0].Value.Uint64()) / 1e6))
}

// peak tracks the maximum of the values it observes.
type peak struct {
	v atomic.Int64
}

func (p *peak) observe(x int64) {
	for {
		cur := p.v.Load()
		if x <= cur || p.v.CompareAndSwap(cur, x) {
			return
		}
	}
}

func (p *peak) load() int64 {
	return p.v.Load()
}
