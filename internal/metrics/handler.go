package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/ab-router/internal/assignment"
)

// CountSource reports the live assignment counts. The collector only sees
// assignments as events, which may be dropped, so /stats reads the counts
// the engine actually balances on.
type CountSource interface {
	Counts() assignment.Counts
}

// Stats is the body served by Handler.
type Stats struct {
	Snapshot
	Counts assignment.Counts `json:"counts"`
	// Skew is the absolute difference between the two counts.
	Skew uint64 `json:"skew"`
}

// Handler serves the JSON snapshot together with the counts from source.
// policy is reported as-is.
func (c *Collector) Handler(policy string, source CountSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := Stats{Snapshot: c.metrics.Snapshot(policy)}
		if source != nil {
			stats.Counts = source.Counts()
			stats.Skew = skew(stats.Counts)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func skew(counts assignment.Counts) uint64 {
	if counts[0] > counts[1] {
		return counts[0] - counts[1]
	}
	return counts[1] - counts[0]
}
