package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/ab-router/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("IncrementRequests", func() {
		It("should count requests", func() {
			m.IncrementRequests()
			m.IncrementRequests()

			snap := m.Snapshot("least-assigned")
			Expect(snap.TotalRequests).To(Equal(int64(2)))
		})
	})

	Describe("RecordAssignment", func() {
		It("should split fresh and sticky assignments per variant", func() {
			m.RecordAssignment(0, true)
			m.RecordAssignment(0, false)
			m.RecordAssignment(0, false)
			m.RecordAssignment(1, true)

			snap := m.Snapshot("least-assigned")
			Expect(snap.Variants["variant0"].FreshAssignments).To(Equal(int64(1)))
			Expect(snap.Variants["variant0"].StickyAssignments).To(Equal(int64(2)))
			Expect(snap.Variants["variant1"].FreshAssignments).To(Equal(int64(1)))
		})
	})

	Describe("RecordResponse", func() {
		It("should record response time and status code", func() {
			m.RecordResponse(0, 100*time.Millisecond, 200)
			m.RecordResponse(0, 200*time.Millisecond, 200)

			v := m.Snapshot("least-assigned").Variants["variant0"]
			Expect(v.AvgResponse).To(Equal(150 * time.Millisecond))
			Expect(v.StatusCodes[200]).To(Equal(int64(2)))
		})

		It("should calculate percentiles", func() {
			for i := 1; i <= 100; i++ {
				m.RecordResponse(1, time.Duration(i)*time.Millisecond, 200)
			}

			v := m.Snapshot("least-assigned").Variants["variant1"]
			Expect(v.P50Response).To(BeNumerically("~", 50*time.Millisecond, time.Millisecond))
			Expect(v.P95Response).To(BeNumerically("~", 95*time.Millisecond, time.Millisecond))
			Expect(v.P99Response).To(BeNumerically("~", 99*time.Millisecond, time.Millisecond))
		})

		It("should limit stored response times", func() {
			for i := 1; i <= 1500; i++ {
				m.RecordResponse(0, time.Duration(i)*time.Millisecond, 200)
			}

			v := m.Snapshot("least-assigned").Variants["variant0"]
			Expect(v.AvgResponse).To(BeNumerically(">", 500*time.Millisecond))
			Expect(v.StatusCodes[200]).To(Equal(int64(1500)))
		})
	})

	Describe("RecordOutcome", func() {
		It("should count outcomes", func() {
			m.RecordOutcome(metrics.OutcomeServed)
			m.RecordOutcome(metrics.OutcomeServed)
			m.RecordOutcome(metrics.OutcomeBackendError)

			snap := m.Snapshot("least-assigned")
			Expect(snap.Outcomes).To(Equal(map[string]int64{"served": 2, "backend_error": 1}))
		})
	})

	Describe("UpdateHealthStatus", func() {
		It("should track health status changes", func() {
			m.UpdateHealthStatus("https://a.example.com/1", true)
			Expect(m.Snapshot("").Backends["https://a.example.com/1"]).To(BeTrue())

			m.UpdateHealthStatus("https://a.example.com/1", false)
			Expect(m.Snapshot("").Backends["https://a.example.com/1"]).To(BeFalse())
		})
	})

	Describe("Snapshot", func() {
		It("should report the policy and uptime", func() {
			time.Sleep(5 * time.Millisecond)
			snap := m.Snapshot("random")
			Expect(snap.Policy).To(Equal("random"))
			Expect(snap.Uptime).To(BeNumerically(">", 0))
		})

		It("should handle empty metrics", func() {
			snap := m.Snapshot("least-assigned")
			Expect(snap.TotalRequests).To(BeZero())
			Expect(snap.Variants).To(BeEmpty())
		})

		It("should be independent of later updates", func() {
			m.RecordResponse(0, time.Millisecond, 200)
			snap := m.Snapshot("least-assigned")
			m.RecordResponse(0, time.Millisecond, 200)
			Expect(snap.Variants["variant0"].StatusCodes[200]).To(Equal(int64(1)))
		})
	})
})
