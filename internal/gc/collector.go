package gc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dray-io/edgegc/internal/logging"
	"github.com/dray-io/edgegc/internal/metrics"
	"github.com/dray-io/edgegc/internal/pathedge"
)

// Trigger decides whether a sweep pass may collect at all.
type Trigger int

const (
	// TriggerImmediate collects on every pass.
	TriggerImmediate Trigger = iota
	// TriggerKeyThreshold collects only while more than KeyThreshold keys
	// have edges.
	TriggerKeyThreshold
	// TriggerEdgeThreshold collects only while more than EdgeThreshold
	// edges are stored.
	TriggerEdgeThreshold
)

func (t Trigger) String() string {
	switch t {
	case TriggerImmediate:
		return "immediate"
	case TriggerKeyThreshold:
		return "key-threshold"
	case TriggerEdgeThreshold:
		return "edge-threshold"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// ParseTrigger parses a trigger name as produced by Trigger.String.
// The empty string selects TriggerImmediate.
func ParseTrigger(s string) (Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "immediate":
		return TriggerImmediate, nil
	case "key-threshold", "keythreshold":
		return TriggerKeyThreshold, nil
	case "edge-threshold", "edgethreshold":
		return TriggerEdgeThreshold, nil
	default:
		return TriggerImmediate, fmt.Errorf("%w: %q", ErrUnknownTrigger, s)
	}
}

// Peer is another collector working on the same analysis. A key is only
// collected when no registered peer still depends on it.
//
// Peer liveness is best-effort: peers are asked before the collector's own
// provider pins the key, so a peer may acquire a reference between its
// answer and the removal. Only the collector's own AtomicReferenceProvider
// makes check-then-delete atomic.
type Peer[K comparable] interface {
	HasActiveDependencies(key K) bool
}

// Config configures a Collector.
type Config struct {
	// Name identifies the collector in logs and metrics.
	Name string

	// Interval is the wait between background sweeps. <= 0 sweeps
	// back-to-back, so a zero-valued Config busy-sweeps; start from
	// DefaultConfig for the one-second default.
	Interval time.Duration

	Trigger       Trigger
	KeyThreshold  int
	EdgeThreshold int

	// ValidateEdges remembers every collected edge so CheckEdge can detect
	// edges the solver derives again.
	ValidateEdges bool

	// Logger defaults to the global logger.
	Logger *logging.Logger

	// Metrics is optional.
	Metrics *metrics.GCMetrics

	// MemorySampler defaults to HeapUsageMB.
	MemorySampler MemorySampler
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() Config {
	return Config{
		Name:     "default",
		Interval: DefaultInterval,
		Trigger:  TriggerImmediate,
	}
}

// SweepResult describes one sweep pass.
type SweepResult struct {
	Keys      int
	Facts     int64
	Edges     int64
	Skipped   int64
	Collected bool // false when the trigger held collection back
	Completed bool // false when ctx was cancelled mid-pass
	Duration  time.Duration
}

// Collector reclaims path edges whose key no live computation references
// any more. It sweeps in the background while the solver runs and once more
// when the solver terminates.
type Collector[K comparable, E comparable] struct {
	cfg        Config
	store      pathedge.Store[K, E]
	keyOf      KeyFunc[E, K]
	refs       ReferenceProvider[K]
	atomicRefs AtomicReferenceProvider[K]
	logger     *logging.Logger
	metrics    *metrics.GCMetrics
	sampleMem  MemorySampler
	runID      string
	scheduler  *Scheduler

	// sweepMu serializes sweep passes.
	sweepMu sync.Mutex

	countsMu sync.RWMutex
	counts   map[K]int

	peersMu sync.RWMutex
	peers   []Peer[K]

	collectedMu sync.Mutex
	collected   map[E]struct{}

	reclaimedFacts atomic.Int64
	reclaimedEdges atomic.Int64
	sweeps         atomic.Int64
	remaining      atomic.Int64
	peakEdges      peak
	peakMemory     peak

	terminateOnce sync.Once
	report        Report
}

// NewCollector creates a collector over store. keyOf maps every edge to the
// key it is collected under and refs decides whether a key is still live.
// If refs also implements AtomicReferenceProvider, the liveness check and
// the removal of a key's edges happen in one critical section.
func NewCollector[K comparable, E comparable](store pathedge.Store[K, E], keyOf KeyFunc[E, K], refs ReferenceProvider[K], cfg Config) (*Collector[K, E], error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if keyOf == nil {
		return nil, ErrNilKeyFunc
	}
	if refs == nil {
		return nil, ErrNilProvider
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	base := cfg.Logger
	if base == nil {
		base = logging.Global()
	}
	runID := uuid.NewString()

	c := &Collector[K, E]{
		cfg:       cfg,
		store:     store,
		keyOf:     keyOf,
		refs:      refs,
		logger:    base.WithComponent("edgegc").WithRunID(runID).With(map[string]any{"collector": cfg.Name}),
		metrics:   cfg.Metrics,
		sampleMem: cfg.MemorySampler,
		runID:     runID,
		counts:    make(map[K]int),
	}
	if a, ok := refs.(AtomicReferenceProvider[K]); ok {
		c.atomicRefs = a
	}
	if c.sampleMem == nil {
		c.sampleMem = HeapUsageMB
	}
	if cfg.ValidateEdges {
		c.collected = make(map[E]struct{})
	}
	c.scheduler = NewScheduler(cfg.Interval, func(ctx context.Context) { c.SweepNow(ctx) })
	return c, nil
}

// Key returns the collection key of edge.
func (c *Collector[K, E]) Key(edge E) K {
	return c.keyOf(edge)
}

// RunID returns the identifier attached to this collector's log lines.
func (c *Collector[K, E]) RunID() string {
	return c.runID
}

// Name returns the configured collector name.
func (c *Collector[K, E]) Name() string {
	return c.cfg.Name
}

// AddPeer registers a collector whose dependencies must also be dead
// before a key is collected.
func (c *Collector[K, E]) AddPeer(p Peer[K]) {
	c.peersMu.Lock()
	c.peers = append(c.peers, p)
	c.peersMu.Unlock()
}

// HasActiveDependencies reports whether this collector's reference
// provider still references key. Unknown liveness counts as active.
func (c *Collector[K, E]) HasActiveDependencies(key K) bool {
	ok, err := c.refs.IsReferenced(key)
	return ok || err != nil
}

func (c *Collector[K, E]) peersActive(key K) bool {
	c.peersMu.RLock()
	defer c.peersMu.RUnlock()
	for _, p := range c.peers {
		if p.HasActiveDependencies(key) {
			return true
		}
	}
	return false
}

// SweepNow runs one synchronous sweep pass. Keys that are unreferenced
// lose all of their edges; the others get their edge count refreshed.
// Cancelling ctx ends the pass between two keys.
func (c *Collector[K, E]) SweepNow(ctx context.Context) SweepResult {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	start := time.Now()
	log := logging.FromCtx(ctx, c.logger)
	keys := c.store.Keys()
	res := SweepResult{Keys: len(keys), Collected: c.shouldCollect(keys)}

	seen := make(map[K]struct{}, len(keys))
	res.Completed = true
	for _, key := range keys {
		if ctx.Err() != nil {
			res.Completed = false
			break
		}
		seen[key] = struct{}{}

		if !res.Collected {
			c.refreshCount(key)
			continue
		}

		removed, err := c.collectKey(key)
		if err != nil {
			res.Skipped++
			log.Warnf("reference check failed, keeping key", map[string]any{
				"key":   fmt.Sprint(key),
				"error": err.Error(),
			})
			c.refreshCount(key)
			continue
		}
		if removed == nil {
			c.refreshCount(key)
			continue
		}

		res.Facts++
		res.Edges += int64(len(removed))
		c.remember(removed)
	}

	if res.Completed {
		c.pruneCounts(seen)
		c.sweeps.Add(1)
	}
	c.reclaimedFacts.Add(res.Facts)
	c.reclaimedEdges.Add(res.Edges)
	res.Duration = time.Since(start)

	c.metrics.RecordSweep(res.Duration, res.Facts, res.Edges, res.Skipped)
	c.afterRemoveEdges()

	if res.Facts > 0 {
		log.Debugf("sweep removed edges", map[string]any{
			"facts":    res.Facts,
			"edges":    res.Edges,
			"keys":     res.Keys,
			"duration": res.Duration.String(),
		})
	}
	return res
}

func (c *Collector[K, E]) shouldCollect(keys []K) bool {
	switch c.cfg.Trigger {
	case TriggerKeyThreshold:
		return len(keys) > c.cfg.KeyThreshold
	case TriggerEdgeThreshold:
		total := 0
		for _, key := range keys {
			total += c.store.Count(key)
		}
		return total > c.cfg.EdgeThreshold
	default:
		return true
	}
}

// collectKey removes the edges of key if it is dead. It returns the removed
// edges, or nil if nothing was removed.
func (c *Collector[K, E]) collectKey(key K) ([]E, error) {
	if c.peersActive(key) {
		return nil, nil
	}

	var removed []E
	collect := func() {
		removed = c.store.Remove(key)
		c.countsMu.Lock()
		delete(c.counts, key)
		c.countsMu.Unlock()
	}

	if c.atomicRefs != nil {
		ok, err := c.atomicRefs.CollectIfUnreferenced(key, collect)
		if err != nil || !ok {
			return nil, err
		}
	} else {
		referenced, err := c.refs.IsReferenced(key)
		if err != nil || referenced {
			return nil, err
		}
		collect()
	}

	if len(removed) == 0 {
		// Emptied by someone else first.
		return nil, nil
	}
	return removed, nil
}

func (c *Collector[K, E]) refreshCount(key K) {
	n := c.store.Count(key)
	c.countsMu.Lock()
	if n == 0 {
		delete(c.counts, key)
	} else {
		c.counts[key] = n
	}
	c.countsMu.Unlock()
}

func (c *Collector[K, E]) pruneCounts(seen map[K]struct{}) {
	c.countsMu.Lock()
	for key := range c.counts {
		if _, ok := seen[key]; !ok {
			delete(c.counts, key)
		}
	}
	c.countsMu.Unlock()
}

func (c *Collector[K, E]) remember(edges []E) {
	if c.collected == nil || len(edges) == 0 {
		return
	}
	c.collectedMu.Lock()
	for _, e := range edges {
		c.collected[e] = struct{}{}
	}
	c.collectedMu.Unlock()
}

// CheckEdge returns ErrEdgeResurrected if edge was collected before. It
// always returns nil unless Config.ValidateEdges is set.
func (c *Collector[K, E]) CheckEdge(edge E) error {
	if c.collected == nil {
		return nil
	}
	c.collectedMu.Lock()
	_, ok := c.collected[edge]
	c.collectedMu.Unlock()
	if ok {
		return fmt.Errorf("%w: %v (key %v)", ErrEdgeResurrected, edge, c.keyOf(edge))
	}
	return nil
}

// afterRemoveEdges refreshes every diagnostic after a pass.
func (c *Collector[K, E]) afterRemoveEdges() {
	remaining := c.countRemaining()
	c.remaining.Store(remaining)
	c.peakEdges.observe(remaining)
	c.peakMemory.observe(c.sampleMem())
	c.metrics.RecordDiagnostics(remaining, c.peakEdges.load(), c.peakMemory.load())
}

func (c *Collector[K, E]) countRemaining() int64 {
	c.countsMu.RLock()
	defer c.countsMu.RUnlock()
	var n int64
	for _, v := range c.counts {
		n += int64(v)
	}
	return n
}

// RemainingEdgeCount returns the number of edges tracked at the end of the
// last sweep.
func (c *Collector[K, E]) RemainingEdgeCount() int64 {
	return c.remaining.Load()
}

// ReclaimedFactCount returns the number of keys collected so far.
func (c *Collector[K, E]) ReclaimedFactCount() int64 {
	return c.reclaimedFacts.Load()
}

// ReclaimedEdgeCount returns the number of edges removed so far.
func (c *Collector[K, E]) ReclaimedEdgeCount() int64 {
	return c.reclaimedEdges.Load()
}

// SweepCount returns the number of completed sweep passes.
func (c *Collector[K, E]) SweepCount() int64 {
	return c.sweeps.Load()
}

// PeakEdgeCount returns the highest remaining edge count seen after a sweep.
func (c *Collector[K, E]) PeakEdgeCount() int64 {
	return c.peakEdges.load()
}

// PeakMemoryUsage returns the highest memory sample in megabytes.
func (c *Collector[K, E]) PeakMemoryUsage() int64 {
	return c.peakMemory.load()
}

// SetInterval changes the wait between background sweeps.
func (c *Collector[K, E]) SetInterval(d time.Duration) {
	c.scheduler.SetInterval(d)
}

// Interval returns the wait between background sweeps.
func (c *Collector[K, E]) Interval() time.Duration {
	return c.scheduler.Interval()
}

// SchedulerState returns the state of the background scheduler.
func (c *Collector[K, E]) SchedulerState() State {
	return c.scheduler.State()
}

// Initialize starts background collection. Call it when the solver starts.
func (c *Collector[K, E]) Initialize(ctx context.Context) error {
	if err := c.scheduler.Start(ctx); err != nil {
		return err
	}
	c.logger.Infof("garbage collector started", map[string]any{
		"interval": c.scheduler.Interval().String(),
		"trigger":  c.cfg.Trigger.String(),
	})
	return nil
}

// NotifyTerminated runs a final sweep, logs the report and stops the
// background scheduler. Call it when the solver has terminated. Later calls
// return the first report without sweeping again.
func (c *Collector[K, E]) NotifyTerminated(ctx context.Context) Report {
	c.terminateOnce.Do(func() {
		c.SweepNow(context.WithoutCancel(ctx))
		c.report = Report{
			ReclaimedFacts: c.ReclaimedFactCount(),
			ReclaimedEdges: c.ReclaimedEdgeCount(),
			RemainingEdges: c.RemainingEdgeCount(),
			PeakEdges:      c.PeakEdgeCount(),
			PeakMemoryMB:   c.PeakMemoryUsage(),
		}
		c.report.log(logging.FromCtx(ctx, c.logger))
		c.scheduler.Stop()
	})
	return c.report
}

var _ Peer[string] = (*Collector[string, int])(nil)
