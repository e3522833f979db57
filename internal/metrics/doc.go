// Package metrics aggregates client performance for the process lifetime.
//
// Every user-visible call is recorded exactly once through Collector.Record,
// synchronously and under a short lock. Per-attempt, health and breaker
// events are emitted without blocking into a buffered channel that a single
// goroutine drains; events are dropped when the buffer is full and drained
// on shutdown.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.EmitAttempt("primary", 120*time.Millisecond, 200, false)
//	collector.Record(metrics.OutcomeSuccess, 130*time.Millisecond, metrics.CacheMiss)
//
//	snapshot := collector.Snapshot("robust")
//
// The same counters are exported on a private Prometheus registry through
// Collector.Exporter.
package metrics
