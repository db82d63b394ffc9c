package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventVariantAssigned   EventType = "variant_assigned"
	EventResponseCompleted EventType = "response_completed"
	EventRequestFinished   EventType = "request_finished"
	EventHealthChanged     EventType = "health_changed"
)

// Request outcomes reported with EventRequestFinished.
const (
	OutcomeServed           = "served"
	OutcomeMethodNotAllowed = "method_not_allowed"
	OutcomeDirectoryError   = "directory_error"
	OutcomeBackendError     = "backend_error"
	OutcomeFault            = "fault"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Variant    int
	Fresh      bool
	Backend    string
	Duration   time.Duration
	StatusCode int
	Outcome    string
	Healthy    bool
}

type Collector struct {
	eventCh    chan MetricEvent
	metrics    *Metrics
	prometheus *Prometheus
	logger     *slog.Logger
}

// NewCollector creates a collector with a buffered event channel. prom may be
// nil, in which case only the in-memory snapshot is maintained.
func NewCollector(bufferSize int, prom *Prometheus, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh:    make(chan MetricEvent, bufferSize),
		metrics:    NewMetrics(),
		prometheus: prom,
		logger:     logger,
	}
}

// Emit queues event without blocking. Events are dropped when the buffer is full.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	select {
	case c.eventCh <- event:
	default:
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

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests()

	case EventVariantAssigned:
		c.metrics.RecordAssignment(event.Variant, event.Fresh)

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Variant, event.Duration, event.StatusCode)

	case EventRequestFinished:
		c.metrics.RecordOutcome(event.Outcome)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Backend, event.Healthy)
	}

	c.prometheus.observe(event)
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

func (c *Collector) Snapshot(policy string) Snapshot {
	return c.metrics.Snapshot(policy)
}
