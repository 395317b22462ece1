package gc

import (
	"runtime"
	"runtime/metrics"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeapUsageMBSeesLiveAllocation(t *testing.T) {
	buf := make([]byte, 64<<20)
	for i := range buf {
		buf[i] = byte(i)
	}
	assert.GreaterOrEqual(t, HeapUsageMB(), int64(60))
	runtime.KeepAlive(buf)
}

func TestHeapUsageMBDoesNotStopTheWorld(t *testing.T) {
	const pauses = "/sched/pauses/total/other:seconds"
	count := func() uint64 {
		s := []metrics.Sample{{Name: pauses}}
		metrics.Read(s)
		if s[0].Value.Kind() != metrics.KindFloat64Histogram {
			t.Skipf("%s not supported by this runtime", pauses)
		}
		var n uint64
		for _, c := range s[0].Value.Float64Histogram().Counts {
			n += c
		}
		return n
	}

	before := count()
	for i := 0; i < 1000; i++ {
		HeapUsageMB()
	}
	assert.Less(t, count()-before, uint64(10))
}

func TestPeakKeepsMaximum(t *testing.T) {
	var p peak
	for _, v := range []int64{3, 9, 4, 9, 1} {
		p.observe(v)
	}
	assert.Equal(t, int64(9), p.load())
}

func TestZeroConfigSweepsBackToBack(t *testing.T) {
	c, _ := newTestCollector(t, NewRefTable[testKey](1), func(cfg *Config) { *cfg = Config{Name: "zero"} })
	assert.Zero(t, c.Interval())
	assert.Equal(t, DefaultInterval, DefaultConfig().Interval)
}
