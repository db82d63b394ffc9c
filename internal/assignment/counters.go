package assignment

import "sync"

// NumVariants is the number of variants traffic is split between.
const NumVariants = 2

// Counts is a point-in-time copy of the per-variant assignment counts.
type Counts [NumVariants]uint64

// Counters records how many assignments each variant has received since the
// process started. Counts only ever grow.
type Counters struct {
	mutex  sync.Mutex
	counts Counts
}

func NewCounters() *Counters {
	return &Counters{}
}

// Increment records one assignment to variant.
func (c *Counters) Increment(variant int) {
	c.mutex.Lock()
	c.counts[variant]++
	c.mutex.Unlock()
}

// Reserve picks a variant with policy and records it in one step, so two
// concurrent fresh assignments never decide on the same stale counts.
func (c *Counters) Reserve(policy Policy) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	variant := policy.Choose(c.counts)
	c.counts[variant]++
	return variant
}

// Snapshot returns the current counts.
func (c *Counters) Snapshot() Counts {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.counts
}
