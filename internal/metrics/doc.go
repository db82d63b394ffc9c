// Package metrics provides real-time metrics collection for the router.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Inbound request counts and finished-request outcomes
//   - Fresh and sticky assignments per variant
//   - Variant backend response times with percentiles (P50, P95, P99)
//   - Variant backend status code distribution
//   - Variant origin health as seen by the probe
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path: Emit drops events when the buffer is full. Every
// event is folded into an in-memory snapshot (served as JSON) and, when a
// Prometheus is attached, into Prometheus counters and histograms.
//
// Example usage:
//
//	prom, _ := metrics.NewPrometheus(registry, "ab_router")
//	collector := metrics.NewCollector(1024, prom, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:    metrics.EventVariantAssigned,
//		Variant: 1,
//		Fresh:   true,
//	})
//
//	snapshot := collector.Snapshot("least-assigned")
package metrics
