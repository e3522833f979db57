package metrics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

type EventType string

const (
	EventAttemptCompleted EventType = "attempt_completed"
	EventHealthChanged    EventType = "health_changed"
	EventBreakerChanged   EventType = "breaker_changed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Target     string
	Duration   time.Duration
	StatusCode int
	Failed     bool
	// Status is the new health status or breaker state.
	Status string
}

// Collector owns the aggregate. Call outcomes are recorded synchronously;
// per-attempt and health events go through a buffered channel drained by a
// single goroutine.
type Collector struct {
	eventCh  chan MetricEvent
	metrics  *Metrics
	exporter *Exporter
	dropped  atomic.Int64
	logger   *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Collector{
		eventCh:  make(chan MetricEvent, bufferSize),
		metrics:  NewMetrics(),
		exporter: NewExporter(),
		logger:   logger,
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

// Record counts one user-visible call. It never blocks on the event channel.
func (c *Collector) Record(outcome Outcome, latency time.Duration, cacheUse CacheUse) {
	c.metrics.Record(outcome, latency, cacheUse)
	c.exporter.ObserveRequest(outcome, latency, cacheUse)
}

func (c *Collector) EmitAttempt(target string, latency time.Duration, statusCode int, failed bool) {
	c.emit(MetricEvent{
		Type:       EventAttemptCompleted,
		Timestamp:  time.Now(),
		Target:     target,
		Duration:   latency,
		StatusCode: statusCode,
		Failed:     failed,
	})
}

func (c *Collector) EmitHealth(target, status string) {
	c.emit(MetricEvent{Type: EventHealthChanged, Timestamp: time.Now(), Target: target, Status: status})
}

func (c *Collector) EmitBreaker(target, state string) {
	c.emit(MetricEvent{Type: EventBreakerChanged, Timestamp: time.Now(), Target: target, Status: state})
}

func (c *Collector) emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
		if c.dropped.Add(1)%100 == 1 {
			c.logger.Warn("Metrics buffer full, dropping events",
				slog.Int64("dropped", c.dropped.Load()))
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventAttemptCompleted:
		c.metrics.RecordAttempt(event.Target, event.Duration, event.StatusCode, event.Failed)
		c.exporter.ObserveAttempt(event.Target, event.Failed)

	case EventHealthChanged:
		c.metrics.UpdateHealth(event.Target, event.Status)
		c.exporter.SetHealth(event.Target, event.Status)

	case EventBreakerChanged:
		c.exporter.SetBreakerState(event.Target, event.Status)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(mode string) Snapshot {
	return c.metrics.Snapshot(mode)
}

// Dropped is the number of events lost to a full buffer.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Collector) Exporter() *Exporter {
	return c.exporter
}
