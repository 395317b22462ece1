package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dray-io/edgegc/internal/config"
	"github.com/dray-io/edgegc/internal/metrics"
	"github.com/dray-io/edgegc/internal/sim"
)

type simulateFlags struct {
	configPath  string
	workers     int
	tasks       int
	granularity string
	interval    float64
	metricsAddr string
	validate    bool
}

func parseSimulateFlags(args []string) (simulateFlags, error) {
	var f simulateFlags
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "Path to configuration file")
	fs.IntVar(&f.workers, "workers", 0, "Override number of solver workers")
	fs.IntVar(&f.tasks, "tasks", -1, "Override number of solver tasks")
	fs.StringVar(&f.granularity, "granularity", "", "Override key granularity (context or procedure)")
	fs.Float64Var(&f.interval, "interval", -1, "Override sweep interval in seconds (0 sweeps back-to-back)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	fs.BoolVar(&f.validate, "validate", false, "Track collected edges and count re-derivations")

	fs.Usage = func() {
		fmt.Println(`Usage: edgegcd simulate [options]

Run a synthetic IFDS solver workload with the path-edge collector sweeping in
the background, then print the termination report.

Options:`)
		fs.PrintDefaults()
	}

	err := fs.Parse(args)
	return f, err
}

func (f simulateFlags) apply(cfg *config.Config) {
	if f.workers > 0 {
		cfg.Simulation.Workers = f.workers
	}
	if f.tasks >= 0 {
		cfg.Simulation.Tasks = f.tasks
	}
	if f.granularity != "" {
		cfg.Collector.Granularity = f.granularity
	}
	if f.interval >= 0 {
		cfg.Collector.IntervalSeconds = f.interval
	}
	if f.metricsAddr != "" {
		cfg.Observability.MetricsAddr = f.metricsAddr
	}
	if f.validate {
		cfg.Collector.ValidateEdges = true
	}
}

func loadConfig(f simulateFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFromPath(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulate(args []string) int {
	f, err := parseSimulateFlags(args)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger := cfg.Observability.Logger()

	reg := prometheus.NewRegistry()
	gcMetrics := metrics.NewGCMetricsWithRegistry(reg, cfg.Collector.Name)
	opts := sim.Options{
		Collector:  cfg.Collector,
		Simulation: cfg.Simulation,
		Logger:     logger,
		Metrics:    gcMetrics,
	}
	if cfg.Observability.MetricsAddr != "" {
		srv := metrics.NewServerWithRegistry(cfg.Observability.MetricsAddr, reg).WithLogger(logger)
		if err := srv.Start(); err != nil {
			logger.Errorf("failed to start metrics server", map[string]any{"error": err.Error()})
			return 1
		}
		defer srv.Close()
		opts.Checks = srv
		logger.Infof("serving metrics", map[string]any{"addr": srv.Addr()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := sim.Run(ctx, opts)
	printSummary(os.Stdout, res)
	if err != nil {
		logger.Errorf("simulation failed", map[string]any{"error": err.Error()})
		return 1
	}
	return 0
}

func printSummary(w io.Writer, res sim.Result) {
	fmt.Fprintln(w, "Run", color.HiCyanString(res.RunID), "finished in", res.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, "Tasks:", color.GreenString("%d", res.Tasks), "Edges inserted:", color.GreenString("%d", res.EdgesInserted))
	if res.Rederived > 0 {
		fmt.Fprintln(w, "Re-derived after collection:", color.YellowString("%d", res.Rederived))
	}
	for _, line := range res.Report.Lines() {
		fmt.Fprintln(w, color.BlueString(line))
	}
}
