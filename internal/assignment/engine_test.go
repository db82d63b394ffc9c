package assignment_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/ab-router/internal/assignment"
)

func seed(c *assignment.Counters, v0, v1 int) {
	for i := 0; i < v0; i++ {
		c.Increment(0)
	}
	for i := 0; i < v1; i++ {
		c.Increment(1)
	}
}

func absDiff(c assignment.Counts) uint64 {
	if c[0] > c[1] {
		return c[0] - c[1]
	}
	return c[1] - c[0]
}

var _ = Describe("Engine", func() {
	var (
		counters *assignment.Counters
		engine   *assignment.Engine
	)

	BeforeEach(func() {
		counters = assignment.NewCounters()
		engine = assignment.NewEngine(counters, assignment.NewLeastAssignedPolicy())
	})

	Describe("sticky assignment", func() {
		It("should keep a variant=1 client on variant 1 and count it", func() {
			got := engine.Assign("variant=1; other=x")
			Expect(got).To(Equal(assignment.Assignment{Variant: 1, Fresh: false}))
			Expect(engine.Counts()).To(Equal(assignment.Counts{0, 1}))
		})

		It("should keep a variant=0 client on variant 0 regardless of counts", func() {
			seed(counters, 50, 0)
			got := engine.Assign("session=abc; variant=0")
			Expect(got.Variant).To(Equal(0))
			Expect(got.Fresh).To(BeFalse())
			Expect(engine.Counts()).To(Equal(assignment.Counts{51, 0}))
		})

		It("should keep a variant=1 client on variant 1 regardless of counts", func() {
			seed(counters, 0, 50)
			for i := 0; i < 10; i++ {
				Expect(engine.Assign("variant=1").Variant).To(Equal(1))
			}
			Expect(engine.Counts()).To(Equal(assignment.Counts{0, 60}))
		})

		It("should prefer variant 0 when both cookies are present", func() {
			got := engine.Assign("variant=1; variant=0")
			Expect(got.Variant).To(Equal(0))
			Expect(got.Fresh).To(BeFalse())
		})
	})

	Describe("fresh assignment", func() {
		It("should pick the less assigned variant", func() {
			seed(counters, 3, 5)
			got := engine.Assign("")
			Expect(got).To(Equal(assignment.Assignment{Variant: 0, Fresh: true}))
			Expect(engine.Counts()).To(Equal(assignment.Counts{4, 5}))
		})

		It("should pick variant 1 when it is behind", func() {
			seed(counters, 7, 2)
			Expect(engine.Assign("").Variant).To(Equal(1))
		})

		It("should break ties toward variant 0", func() {
			for _, n := range []int{0, 1, 4, 20} {
				c := assignment.NewCounters()
				seed(c, n, n)
				e := assignment.NewEngine(c, nil)
				Expect(e.Assign("").Variant).To(Equal(0))
			}
		})

		It("should treat unrelated or invalid cookies as no cookie", func() {
			seed(counters, 1, 0)
			got := engine.Assign("theme=dark; variant=2; myvariant=0")
			Expect(got).To(Equal(assignment.Assignment{Variant: 1, Fresh: true}))
		})

		It("should never let the counts drift more than one apart", func() {
			for i := 0; i < 1001; i++ {
				engine.Assign("")
				Expect(absDiff(engine.Counts())).To(BeNumerically("<=", 1))
			}
			Expect(engine.Counts()).To(Equal(assignment.Counts{501, 500}))
		})

		It("should stay balanced under concurrent fresh assignments", func() {
			var wg sync.WaitGroup
			for i := 0; i < 200; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					engine.Assign("")
				}()
			}
			wg.Wait()
			Expect(engine.Counts()).To(Equal(assignment.Counts{100, 100}))
		})

		It("should compensate for sticky traffic", func() {
			for i := 0; i < 10; i++ {
				engine.Assign("variant=0")
			}
			for i := 0; i < 10; i++ {
				Expect(engine.Assign("").Variant).To(Equal(1))
			}
			Expect(engine.Assign("").Variant).To(Equal(0))
		})
	})

	Describe("random policy", func() {
		It("should only return valid variants", func() {
			e := assignment.NewEngine(assignment.NewCounters(), assignment.NewRandomPolicy())
			for i := 0; i < 100; i++ {
				got := e.Assign("")
				Expect(got.Variant).To(BeElementOf(0, 1))
				Expect(got.Fresh).To(BeTrue())
			}
			counts := e.Counts()
			Expect(counts[0] + counts[1]).To(Equal(uint64(100)))
		})

		It("should still honour sticky cookies", func() {
			e := assignment.NewEngine(assignment.NewCounters(), assignment.NewRandomPolicy())
			for i := 0; i < 20; i++ {
				Expect(e.Assign("variant=1").Variant).To(Equal(1))
			}
		})
	})
})
