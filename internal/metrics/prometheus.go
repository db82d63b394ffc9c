package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus mirrors collector events into Prometheus metrics.
type Prometheus struct {
	requests    prometheus.Counter
	outcomes    *prometheus.CounterVec
	assignments *prometheus.CounterVec
	responses   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	healthy     *prometheus.GaugeVec
}

// NewPrometheus creates and registers the router metrics on reg
// (prometheus.DefaultRegisterer if nil) under namespace ("ab_router" if empty).
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "ab_router"
	}

	p := &Prometheus{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total inbound requests.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_outcomes_total",
			Help:      "Finished requests by outcome (served, method_not_allowed, directory_error, backend_error, fault).",
		}, []string{"outcome"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Variant assignments by variant and kind (fresh, sticky).",
		}, []string{"variant", "kind"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "responses_total",
			Help:      "Variant backend responses by variant and status code.",
		}, []string{"variant", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "response_seconds",
			Help:      "Variant backend response latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"variant"}),
		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "healthy",
			Help:      "1 if the last probe of the variant origin succeeded.",
		}, []string{"backend"}),
	}

	for _, c := range []prometheus.Collector{p.requests, p.outcomes, p.assignments, p.responses, p.latency, p.healthy} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Prometheus) observe(event MetricEvent) {
	if p == nil {
		return
	}

	switch event.Type {
	case EventRequestReceived:
		p.requests.Inc()

	case EventVariantAssigned:
		kind := "sticky"
		if event.Fresh {
			kind = "fresh"
		}
		p.assignments.WithLabelValues(VariantLabel(event.Variant), kind).Inc()

	case EventResponseCompleted:
		variant := VariantLabel(event.Variant)
		p.responses.WithLabelValues(variant, strconv.Itoa(event.StatusCode)).Inc()
		p.latency.WithLabelValues(variant).Observe(event.Duration.Seconds())

	case EventRequestFinished:
		p.outcomes.WithLabelValues(event.Outcome).Inc()

	case EventHealthChanged:
		value := 0.0
		if event.Healthy {
			value = 1
		}
		p.healthy.WithLabelValues(event.Backend).Set(value)
	}
}
