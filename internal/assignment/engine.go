package assignment

// Assignment is the outcome of routing one request.
type Assignment struct {
	Variant int
	// Fresh is true when the client had no sticky cookie and must be sent one.
	Fresh bool
}

// Engine assigns requests to variants. It is safe for concurrent use.
type Engine struct {
	counters *Counters
	policy   Policy
}

func NewEngine(counters *Counters, policy Policy) *Engine {
	if policy == nil {
		policy = NewLeastAssignedPolicy()
	}

	return &Engine{
		counters: counters,
		policy:   policy,
	}
}

// Assign returns the variant for a request carrying cookieHeader and records
// it in the counters. It never fails.
func (e *Engine) Assign(cookieHeader string) Assignment {
	if variant, ok := StickyVariant(cookieHeader); ok {
		e.counters.Increment(variant)
		return Assignment{Variant: variant}
	}

	return Assignment{
		Variant: e.counters.Reserve(e.policy),
		Fresh:   true,
	}
}

// Counts returns the engine's current assignment counts.
func (e *Engine) Counts() Counts {
	return e.counters.Snapshot()
}
