// Package metrics provides Prometheus metrics for the path-edge collector.
//
// This package exposes:
//   - Reclaimed fact and path-edge counters
//   - Sweep counter and sweep duration histogram
//   - Skipped-key counter (keys whose liveness could not be determined)
//   - Remaining, peak remaining, and peak memory gauges
//
// Metrics are exposed via a dedicated HTTP server on /metrics in Prometheus format.
//
// Usage:
//
//	gcMetrics := metrics.NewGCMetrics("forward")
//	collector := gc.NewCollector(store, keyOf, refs, gc.Config{Metrics: gcMetrics})
//
//	metricsServer := metrics.NewServer(":9090")
//	metricsServer.Start()
package metrics
