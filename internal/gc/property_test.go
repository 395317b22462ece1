package gc

import (
	"context"
	"testing"
	"testing/quick"

	"github.com/dray-io/edgegc/internal/logging"
	"github.com/dray-io/edgegc/internal/pathedge"
)

const propKeys = 8

// runOps drives a collector with a random sequence of solver operations.
// Each op byte encodes an action in its low two bits and a key in the rest.
func runOps(ops []byte) bool {
	store := pathedge.NewMultiMap[int, int](4)
	refs := NewRefTable[int](4)
	cfg := DefaultConfig()
	cfg.Logger = logging.Nop()
	cfg.MemorySampler = func() int64 { return 1 }
	c, err := NewCollector(store, func(e int) int { return e % propKeys }, refs, cfg)
	if err != nil {
		return false
	}

	held := make([]int, propKeys)
	next := 0
	puts := 0
	var lastFacts, lastEdges, lastPeak int64

	for _, op := range ops {
		k := int(op>>2) % propKeys
		switch op & 3 {
		case 0:
			refs.Acquire(k)
			held[k]++
		case 1:
			if held[k] > 0 {
				if refs.Release(k) != nil {
					return false
				}
				held[k]--
			}
		case 2:
			store.Put(k, next*propKeys+k)
			next++
			puts++
		case 3:
			before := make([]int, propKeys)
			for i := range before {
				before[i] = store.Count(i)
			}
			c.SweepNow(context.Background())
			for i := range before {
				// Referenced keys keep every edge; the others lose all of them.
				if held[i] > 0 && store.Count(i) != before[i] {
					return false
				}
				if held[i] == 0 && store.Count(i) != 0 {
					return false
				}
			}
			if c.ReclaimedFactCount() < lastFacts || c.ReclaimedEdgeCount() < lastEdges || c.PeakEdgeCount() < lastPeak {
				return false
			}
			lastFacts, lastEdges, lastPeak = c.ReclaimedFactCount(), c.ReclaimedEdgeCount(), c.PeakEdgeCount()

			again := c.SweepNow(context.Background())
			if again.Facts != 0 || again.Edges != 0 {
				return false
			}
		}
	}

	for k, n := range held {
		for ; n > 0; n-- {
			if refs.Release(k) != nil {
				return false
			}
		}
	}
	report := c.NotifyTerminated(context.Background())
	return report.RemainingEdges == 0 &&
		report.ReclaimedEdges == int64(puts) &&
		store.Len() == 0
}

func TestPropertyCollectionRespectsReferences(t *testing.T) {
	if err := quick.Check(runOps, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}

func TestPropertyRemainingMatchesStore(t *testing.T) {
	f := func(counts []uint8) bool {
		store := pathedge.NewMultiMap[int, int](4)
		refs := NewRefTable[int](4)
		cfg := DefaultConfig()
		cfg.Logger = logging.Nop()
		c, err := NewCollector(store, func(e int) int { return e % propKeys }, refs, cfg)
		if err != nil {
			return false
		}
		for k := 0; k < propKeys; k++ {
			refs.Acquire(k)
		}
		for i, n := range counts {
			for j := 0; j < int(n%16); j++ {
				store.Put(i%propKeys, (i*16+j)*propKeys+i%propKeys)
			}
		}
		c.SweepNow(context.Background())
		return c.RemainingEdgeCount() == int64(store.Len()) &&
			c.PeakEdgeCount() == int64(store.Len())
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
