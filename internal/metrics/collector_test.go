package metrics_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/ab-router/internal/assignment"
	"github.com/angeloszaimis/ab-router/internal/metrics"
	"github.com/angeloszaimis/ab-router/pkg/logger"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		registry  *prometheus.Registry
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		registry = prometheus.NewRegistry()
		prom, err := metrics.NewPrometheus(registry, "test")
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, prom, logger.Discard())
	})

	AfterEach(func() {
		cancel()
	})

	Describe("event processing", func() {
		BeforeEach(func() {
			collector.Start(ctx)
		})

		It("should process EventRequestReceived", func() {
			collector.Emit(metrics.MetricEvent{Type: metrics.EventRequestReceived, Timestamp: time.Now()})

			Eventually(func() int64 {
				return collector.Snapshot("least-assigned").TotalRequests
			}).Should(Equal(int64(1)))
			Expect(testutil.CollectAndCount(registry, "test_requests_total")).To(Equal(1))
		})

		It("should process EventVariantAssigned", func() {
			collector.Emit(metrics.MetricEvent{Type: metrics.EventVariantAssigned, Variant: 1, Fresh: true})
			collector.Emit(metrics.MetricEvent{Type: metrics.EventVariantAssigned, Variant: 1})

			Eventually(func() int64 {
				return collector.Snapshot("").Variants["variant1"].StickyAssignments
			}).Should(Equal(int64(1)))
			Expect(collector.Snapshot("").Variants["variant1"].FreshAssignments).To(Equal(int64(1)))
		})

		It("should process EventResponseCompleted", func() {
			collector.Emit(metrics.MetricEvent{
				Type:       metrics.EventResponseCompleted,
				Variant:    0,
				Duration:   100 * time.Millisecond,
				StatusCode: 200,
			})

			Eventually(func() int64 {
				return collector.Snapshot("").Variants["variant0"].StatusCodes[200]
			}).Should(Equal(int64(1)))
			Expect(collector.Snapshot("").Variants["variant0"].AvgResponse).To(Equal(100 * time.Millisecond))
		})

		It("should process EventRequestFinished", func() {
			collector.Emit(metrics.MetricEvent{Type: metrics.EventRequestFinished, Outcome: metrics.OutcomeMethodNotAllowed})

			Eventually(func() int64 {
				return collector.Snapshot("").Outcomes[metrics.OutcomeMethodNotAllowed]
			}).Should(Equal(int64(1)))
		})

		It("should process EventHealthChanged", func() {
			collector.Emit(metrics.MetricEvent{Type: metrics.EventHealthChanged, Backend: "https://a.example.com/1", Healthy: true})

			Eventually(func() bool {
				return collector.Snapshot("").Backends["https://a.example.com/1"]
			}).Should(BeTrue())
		})
	})

	It("should drain events on context cancellation", func() {
		for i := 0; i < 5; i++ {
			collector.Emit(metrics.MetricEvent{Type: metrics.EventRequestReceived})
		}

		collector.Start(ctx)
		cancel()

		Eventually(func() int64 {
			return collector.Snapshot("").TotalRequests
		}).Should(Equal(int64(5)))
	})

	It("should drop events instead of blocking when the buffer is full", func() {
		small := metrics.NewCollector(1, nil, logger.Discard())
		done := make(chan struct{})
		go func() {
			small.Emit(metrics.MetricEvent{Type: metrics.EventRequestReceived})
			small.Emit(metrics.MetricEvent{Type: metrics.EventRequestReceived})
			close(done)
		}()
		Eventually(done).Should(BeClosed())
	})

	It("should ignore Emit on a nil collector", func() {
		var none *metrics.Collector
		Expect(func() { none.Emit(metrics.MetricEvent{}) }).NotTo(Panic())
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)
			collector.Emit(metrics.MetricEvent{Type: metrics.EventRequestReceived})
			Eventually(func() int64 {
				return collector.Snapshot("").TotalRequests
			}).Should(Equal(int64(1)))

			rec := httptest.NewRecorder()
			collector.Handler("least-assigned", nil)(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var stats metrics.Stats
			Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
			Expect(stats.Policy).To(Equal("least-assigned"))
			Expect(stats.TotalRequests).To(Equal(int64(1)))
			Expect(stats.Counts).To(Equal(assignment.Counts{0, 0}))
		})

		It("should report the engine's live counts and their skew", func() {
			engine := assignment.NewEngine(assignment.NewCounters(), nil)
			for range 3 {
				engine.Assign("variant=1")
			}
			engine.Assign("")

			rec := httptest.NewRecorder()
			collector.Handler("least-assigned", engine)(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			var stats metrics.Stats
			Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
			Expect(stats.Counts).To(Equal(assignment.Counts{1, 3}))
			Expect(stats.Skew).To(Equal(uint64(2)))
		})
	})
})

var _ = Describe("Prometheus", func() {
	It("should refuse to register twice on the same registry", func() {
		registry := prometheus.NewRegistry()
		_, err := metrics.NewPrometheus(registry, "dup")
		Expect(err).NotTo(HaveOccurred())
		_, err = metrics.NewPrometheus(registry, "dup")
		Expect(err).To(HaveOccurred())
	})
})
