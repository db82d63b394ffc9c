package metrics

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	requests      int64
	outcomes      map[string]int64
	fresh         map[int]int64
	sticky        map[int]int64
	responseTimes map[int][]time.Duration
	statusCodes   map[int]map[int]int64
	healthStatus  map[string]bool
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                     `json:"total_requests"`
	Uptime        time.Duration             `json:"uptime"`
	Policy        string                    `json:"policy"`
	Outcomes      map[string]int64          `json:"outcomes"`
	Variants      map[string]VariantMetrics `json:"variants"`
	Backends      map[string]bool           `json:"backends_healthy"`
}

type VariantMetrics struct {
	FreshAssignments  int64         `json:"fresh_assignments"`
	StickyAssignments int64         `json:"sticky_assignments"`
	AvgResponse       time.Duration `json:"avg_response"`
	P50Response       time.Duration `json:"p50_response"`
	P95Response       time.Duration `json:"p95_response"`
	P99Response       time.Duration `json:"p99_response"`
	StatusCodes       map[int]int64 `json:"status_codes"`
}

func (m *Metrics) IncrementRequests() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests++
}

func (m *Metrics) RecordOutcome(outcome string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.outcomes[outcome]++
}

func (m *Metrics) RecordAssignment(variant int, fresh bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if fresh {
		m.fresh[variant]++
	} else {
		m.sticky[variant]++
	}
}

func (m *Metrics) RecordResponse(variant int, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[variant] = append(m.responseTimes[variant], duration)

	if len(m.responseTimes[variant]) > maxSamples {
		m.responseTimes[variant] = m.responseTimes[variant][1:]
	}

	if m.statusCodes[variant] == nil {
		m.statusCodes[variant] = make(map[int]int64)
	}
	m.statusCodes[variant][statusCode]++
}

func (m *Metrics) UpdateHealthStatus(backend string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[backend] = healthy
}

func (m *Metrics) Snapshot(policy string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRequests: m.requests,
		Uptime:        time.Since(m.startTime),
		Policy:        policy,
		Outcomes:      make(map[string]int64, len(m.outcomes)),
		Variants:      make(map[string]VariantMetrics),
		Backends:      make(map[string]bool, len(m.healthStatus)),
	}

	for outcome, n := range m.outcomes {
		snap.Outcomes[outcome] = n
	}
	for backend, healthy := range m.healthStatus {
		snap.Backends[backend] = healthy
	}

	// Collect every variant that has been seen
	seen := make(map[int]bool)
	for v := range m.fresh {
		seen[v] = true
	}
	for v := range m.sticky {
		seen[v] = true
	}
	for v := range m.responseTimes {
		seen[v] = true
	}

	for v := range seen {
		vm := VariantMetrics{
			FreshAssignments:  m.fresh[v],
			StickyAssignments: m.sticky[v],
			StatusCodes:       make(map[int]int64, len(m.statusCodes[v])),
		}
		for code, n := range m.statusCodes[v] {
			vm.StatusCodes[code] = n
		}

		durations := m.responseTimes[v]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			vm.AvgResponse = average(sorted)
			vm.P50Response = percentile(sorted, 0.50)
			vm.P95Response = percentile(sorted, 0.95)
			vm.P99Response = percentile(sorted, 0.99)
		}

		snap.Variants[VariantLabel(v)] = vm
	}

	return snap
}

// VariantLabel is the name a variant is reported under.
func VariantLabel(variant int) string {
	return "variant" + strconv.Itoa(variant)
}

func NewMetrics() *Metrics {
	return &Metrics{
		outcomes:      make(map[string]int64),
		fresh:         make(map[int]int64),
		sticky:        make(map[int]int64),
		responseTimes: make(map[int][]time.Duration),
		statusCodes:   make(map[int]map[int]int64),
		healthStatus:  make(map[string]bool),
		startTime:     time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
