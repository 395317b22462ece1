package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/edgegc/internal/config"
	"github.com/dray-io/edgegc/internal/gc"
	"github.com/dray-io/edgegc/internal/sim"
)

func TestParseSimulateFlagsOverrides(t *testing.T) {
	f, err := parseSimulateFlags([]string{
		"-workers", "3",
		"-tasks", "0",
		"-granularity", "procedure",
		"-interval", "0",
		"-validate",
	})
	require.NoError(t, err)

	cfg := config.Default()
	f.apply(cfg)

	assert.Equal(t, 3, cfg.Simulation.Workers)
	assert.Zero(t, cfg.Simulation.Tasks)
	assert.Equal(t, config.GranularityProcedure, cfg.Collector.Granularity)
	assert.Zero(t, cfg.Collector.IntervalSeconds)
	assert.True(t, cfg.Collector.ValidateEdges)
}

func TestParseSimulateFlagsDefaultsLeaveConfig(t *testing.T) {
	f, err := parseSimulateFlags(nil)
	require.NoError(t, err)

	cfg := config.Default()
	f.apply(cfg)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgegc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collector:\n  trigger: sometimes\n"), 0o600))

	_, err := loadConfig(simulateFlags{configPath: path, tasks: -1, interval: -1})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	printSummary(&buf, sim.Result{
		RunID:         "run-1",
		Tasks:         10,
		EdgesInserted: 40,
		Duration:      1500 * time.Millisecond,
		Report:        gc.Report{ReclaimedFacts: 2, ReclaimedEdges: 40},
	})

	out := buf.String()
	assert.Contains(t, out, "Run run-1 finished in 1.5s")
	assert.Contains(t, out, "Tasks: 10 Edges inserted: 40")
	assert.Contains(t, out, "GC removed 2 facts")
	assert.Contains(t, out, "Recorded maximum memory consumption is 0 MB")
	assert.NotContains(t, out, "Re-derived")
}
