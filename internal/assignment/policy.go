package assignment

import "math/rand/v2"

// Policy chooses the variant for a fresh assignment given the current counts.
// Implementations must return 0 or 1.
type Policy interface {
	Choose(counts Counts) int
}

type leastAssignedPolicy struct{}

func (leastAssignedPolicy) Choose(counts Counts) int {
	if counts[0] <= counts[1] {
		return 0
	}
	return 1
}

// NewLeastAssignedPolicy returns the policy that picks the variant with fewer
// recorded assignments, preferring variant 0 on a tie.
func NewLeastAssignedPolicy() Policy {
	return leastAssignedPolicy{}
}

type randomPolicy struct{}

func (randomPolicy) Choose(Counts) int {
	return rand.IntN(NumVariants)
}

// NewRandomPolicy returns a coin-flip policy. It ignores the counts and so
// does not correct the split skewed by sticky repeat traffic.
func NewRandomPolicy() Policy {
	return randomPolicy{}
}
