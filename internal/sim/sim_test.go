package sim

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/edgegc/internal/config"
	"github.com/dray-io/edgegc/internal/logging"
	"github.com/dray-io/edgegc/internal/metrics"
)

func testOptions(granularity string) Options {
	cfg := config.Default()
	cfg.Collector.IntervalSeconds = 0
	cfg.Collector.Granularity = granularity
	cfg.Simulation.Workers = 4
	cfg.Simulation.Procedures = 8
	cfg.Simulation.FactsPerProcedure = 4
	cfg.Simulation.EdgesPerTask = 5
	cfg.Simulation.Tasks = 400
	return Options{
		Collector:     cfg.Collector,
		Simulation:    cfg.Simulation,
		Logger:        logging.Nop(),
		MemorySampler: func() int64 { return 3 },
	}
}

func TestGraph(t *testing.T) {
	g := NewGraph(3, 4)

	assert.Equal(t, []string{"proc000", "proc001", "proc002"}, g.Procedures())
	assert.Equal(t, "proc001:entry", g.Entry("proc001"))
	assert.Equal(t, "proc001:s1", g.Point("proc001", 5))
	assert.Equal(t, "proc002", g.ProcedureOf(g.Point("proc002", 0)))
	assert.Equal(t, "proc002", g.ProcedureOf(g.Entry("proc002")))
}

func TestRunReclaimsEverythingAtTermination(t *testing.T) {
	for _, granularity := range []string{config.GranularityContext, config.GranularityProcedure} {
		t.Run(granularity, func(t *testing.T) {
			res, err := Run(context.Background(), testOptions(granularity))
			require.NoError(t, err)

			assert.NotEmpty(t, res.RunID)
			assert.Equal(t, int64(400), res.Tasks)
			assert.Positive(t, res.EdgesInserted)
			assert.Equal(t, res.EdgesInserted, res.Report.ReclaimedEdges)
			assert.Zero(t, res.Report.RemainingEdges)
			assert.Positive(t, res.Report.ReclaimedFacts)
			assert.Equal(t, int64(3), res.Report.PeakMemoryMB)
		})
	}
}

func TestRunHeldContextIsNeverRederived(t *testing.T) {
	opts := testOptions(config.GranularityContext)
	opts.Collector.ValidateEdges = true
	// A single worker on a single context always holds a reference to it,
	// so nothing can be collected before termination.
	opts.Simulation.Procedures = 1
	opts.Simulation.FactsPerProcedure = 1
	opts.Simulation.Workers = 1

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Zero(t, res.Rederived)
	// Five body points times three target facts.
	assert.Equal(t, int64(15), res.EdgesInserted)
	assert.Equal(t, int64(15), res.Report.ReclaimedEdges)
	assert.Equal(t, int64(1), res.Report.ReclaimedFacts)
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := testOptions(config.GranularityContext)
	opts.Metrics = metrics.NewGCMetricsWithRegistry(reg, "sim")

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, float64(res.Report.ReclaimedEdges), testutil.ToFloat64(opts.Metrics.ReclaimedEdges))
	assert.Equal(t, float64(res.Report.ReclaimedFacts), testutil.ToFloat64(opts.Metrics.ReclaimedFacts))
	assert.Positive(t, testutil.ToFloat64(opts.Metrics.Sweeps))
	assert.Zero(t, testutil.ToFloat64(opts.Metrics.RemainingEdges))
}

func TestRunWithNoTasks(t *testing.T) {
	opts := testOptions(config.GranularityContext)
	opts.Simulation.Tasks = 0

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Zero(t, res.Tasks)
	assert.Zero(t, res.Report.ReclaimedEdges)
}

type recordingChecks map[string]metrics.CheckFunc

func (r recordingChecks) RegisterCheck(name string, check metrics.CheckFunc) {
	r[name] = check
}

func TestRunRegistersCollectorHealthCheck(t *testing.T) {
	checks := recordingChecks{}
	opts := testOptions(config.GranularityContext)
	opts.Checks = checks

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	require.Contains(t, checks, "collector")
	// The collector has terminated, so its scheduler is stopped.
	assert.Error(t, checks["collector"](context.Background()))
}

var _ CheckRegistrar = (*metrics.Server)(nil)
