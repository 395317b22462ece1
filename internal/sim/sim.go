package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dray-io/edgegc/internal/config"
	"github.com/dray-io/edgegc/internal/gc"
	"github.com/dray-io/edgegc/internal/logging"
	"github.com/dray-io/edgegc/internal/metrics"
	"github.com/dray-io/edgegc/internal/pathedge"
)

// Edge is the path edge type of the simulated solver.
type Edge = pathedge.Edge[string, string]

// Window is how many tasks a worker keeps in flight before it finishes
// the oldest one and releases its reference.
const Window = 4

// Options configures a simulation run.
type Options struct {
	Collector  config.CollectorConfig
	Simulation config.SimulationConfig

	Logger        *logging.Logger
	Metrics       *metrics.GCMetrics
	MemorySampler gc.MemorySampler

	// Checks, if set, receives a health check reporting whether the
	// background collector is running.
	Checks CheckRegistrar
}

// CheckRegistrar accepts named health checks. *metrics.Server implements it.
type CheckRegistrar interface {
	RegisterCheck(name string, check metrics.CheckFunc)
}

// Result describes a finished simulation.
type Result struct {
	RunID         string
	Tasks         int64
	EdgesInserted int64
	// Rederived counts edges the solver derived again after they were
	// collected. Only tracked with validateEdges.
	Rederived int64
	Duration  time.Duration
	Report    gc.Report
}

// Run executes the workload described by opts and returns the collector's
// termination report.
func Run(ctx context.Context, opts Options) (Result, error) {
	g := NewGraph(opts.Simulation.Procedures, opts.Simulation.EdgesPerTask)
	icfg := gc.ICFG[string, string](g)

	switch opts.Collector.Granularity {
	case config.GranularityProcedure:
		return run(ctx, opts, g, gc.ProcedureKeys[string, string, string](icfg),
			func(proc, _ string) string { return proc })
	default:
		return run(ctx, opts, g, gc.FineGrainedKeys[string, string, string](icfg),
			func(proc, fact string) gc.ContextKey[string, string] {
				return gc.ContextKey[string, string]{Procedure: proc, Fact: fact}
			})
	}
}

type workload[K comparable] struct {
	opts      Options
	graph     *Graph
	store     *pathedge.MultiMap[K, Edge]
	refs      *gc.RefTable[K]
	collector *gc.Collector[K, Edge]
	refKey    func(proc, fact string) K
}

func run[K comparable](ctx context.Context, opts Options, g *Graph, keyOf gc.KeyFunc[Edge, K], refKey func(proc, fact string) K) (Result, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunIDCtx(ctx, runID)
	log := logging.FromCtx(ctx, opts.Logger).WithComponent("sim")

	gcCfg := opts.Collector.GCConfig()
	gcCfg.Logger = opts.Logger
	gcCfg.Metrics = opts.Metrics
	gcCfg.MemorySampler = opts.MemorySampler

	store := pathedge.NewMultiMap[K, Edge](pathedge.DefaultShards)
	refs := gc.NewRefTable[K](gc.DefaultRefShards)
	c, err := gc.NewCollector(store, keyOf, refs, gcCfg)
	if err != nil {
		return Result{}, err
	}

	if opts.Checks != nil {
		opts.Checks.RegisterCheck("collector", func(context.Context) error {
			if state := c.SchedulerState(); state != gc.StateRunning {
				return fmt.Errorf("collector %s is %s", c.Name(), state)
			}
			return nil
		})
	}

	w := &workload[K]{opts: opts, graph: g, store: store, refs: refs, collector: c, refKey: refKey}

	log.Infof("simulation starting", map[string]any{
		"workers":     opts.Simulation.Workers,
		"tasks":       opts.Simulation.Tasks,
		"procedures":  opts.Simulation.Procedures,
		"granularity": opts.Collector.Granularity,
	})

	start := time.Now()
	if err := c.Initialize(ctx); err != nil {
		return Result{}, err
	}

	tasks := make(chan int)
	stats := make([]workerStats, opts.Simulation.Workers)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(tasks)
		for i := 0; i < opts.Simulation.Tasks; i++ {
			select {
			case tasks <- i:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
		return nil
	})
	for i := 0; i < opts.Simulation.Workers; i++ {
		eg.Go(func() error {
			return w.work(i, tasks, &stats[i])
		})
	}
	runErr := eg.Wait()

	report := c.NotifyTerminated(ctx)
	res := Result{
		RunID:    runID,
		Duration: time.Since(start),
		Report:   report,
	}
	for _, s := range stats {
		res.Tasks += s.tasks
		res.EdgesInserted += s.edges
		res.Rederived += s.rederived
	}
	if runErr != nil {
		return res, fmt.Errorf("sim: %w", runErr)
	}

	log.Infof("simulation finished", map[string]any{
		"tasks":     res.Tasks,
		"edges":     res.EdgesInserted,
		"rederived": res.Rederived,
		"duration":  res.Duration.String(),
	})
	return res, nil
}

type workerStats struct {
	tasks     int64
	edges     int64
	rederived int64
}

// work processes tasks. Every task holds a reference on its calling
// context from before its first edge is inserted until the task is
// finished, Window tasks later.
func (w *workload[K]) work(id int, tasks <-chan int, st *workerStats) error {
	seed := uint64(w.opts.Simulation.Seed)
	rng := rand.New(rand.NewPCG(seed, uint64(id)))
	procs := w.graph.Procedures()

	var inFlight []K
	finish := func(k K) error {
		return w.refs.Release(k)
	}

	for task := range tasks {
		proc := procs[rng.IntN(len(procs))]
		fact := fmt.Sprintf("f%d", rng.IntN(w.opts.Simulation.FactsPerProcedure))
		k := w.refKey(proc, fact)
		w.refs.Acquire(k)
		inFlight = append(inFlight, k)

		entry := w.graph.Entry(proc)
		for j := 0; j < w.opts.Simulation.EdgesPerTask; j++ {
			e := pathedge.NewEdge(entry, fact, w.graph.Point(proc, j), fmt.Sprintf("%s.%d", fact, task%3))
			if w.collector.CheckEdge(e) != nil {
				st.rederived++
			}
			if w.store.Put(w.collector.Key(e), e) {
				st.edges++
			}
		}
		st.tasks++

		if len(inFlight) > Window {
			if err := finish(inFlight[0]); err != nil {
				return err
			}
			inFlight = inFlight[1:]
		}
	}

	for _, k := range inFlight {
		if err := finish(k); err != nil {
			return err
		}
	}
	return nil
}
