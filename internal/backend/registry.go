package backend

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"
)

// Registry hands out one Backend per origin URL so response-time and health
// state survive across requests.
type Registry struct {
	mutex    sync.RWMutex
	backends map[string]*Backend
	client   *http.Client
}

func NewRegistry(client *http.Client) *Registry {
	return &Registry{
		backends: make(map[string]*Backend),
		client:   client,
	}
}

// Get returns the Backend for rawURL, creating it on first use.
func (r *Registry) Get(rawURL string) (*Backend, error) {
	r.mutex.RLock()
	b, exists := r.backends[rawURL]
	r.mutex.RUnlock()

	if exists {
		return b, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", rawURL, err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if b, exists = r.backends[rawURL]; exists {
		return b, nil
	}

	b = New(u, r.client)
	r.backends[rawURL] = b
	return b, nil
}

// Status is the observable state of one backend.
type Status struct {
	URL          string        `json:"url"`
	Healthy      bool          `json:"healthy"`
	ResponseTime time.Duration `json:"ewma_response"`
}

// Stats returns the state of every known backend, ordered by URL.
func (r *Registry) Stats() []Status {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make([]Status, 0, len(r.backends))
	for rawURL, b := range r.backends {
		stats = append(stats, Status{
			URL:          rawURL,
			Healthy:      b.IsHealthy(),
			ResponseTime: b.EWMATime(),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].URL < stats[j].URL
	})
	return stats
}
