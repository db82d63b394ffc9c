package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/angeloszaimis/ab-router/internal/upstream"
)

// Backend represents one variant origin with health status and response time
// monitoring.
type Backend struct {
	url              *url.URL
	client           *http.Client
	mutex            sync.Mutex
	isHealthy        bool
	ewmaResponseTime time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// Fetch issues a plain GET for the backend URL. No inbound request headers
// are forwarded. A non-2xx answer is returned as *upstream.StatusError with
// the body already closed; otherwise the caller owns res.Body.
func (b *Backend) Fetch(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", b.url, err)
	}

	start := time.Now()
	res, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", b.url, err)
	}
	b.RecordResponse(time.Since(start))

	if !upstream.OK(res.StatusCode) {
		res.Body.Close()
		return nil, upstream.FromResponse(res)
	}

	return res, nil
}

// URL returns the backend origin URL.
func (b *Backend) URL() *url.URL {
	return b.url
}

// IsHealthy returns true if the backend is currently healthy.
func (b *Backend) IsHealthy() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.isHealthy
}

// SetHealthy updates the backend's health status.
// Returns true if the status changed, false if it was already in that state.
func (b *Backend) SetHealthy(healthy bool) (changed bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.isHealthy == healthy {
		return false
	}

	b.isHealthy = healthy
	return true
}

// RecordResponse updates the exponentially weighted moving average (EWMA)
// response time using the latest request duration.
func (b *Backend) RecordResponse(duration time.Duration) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.hasEWMA {
		b.ewmaResponseTime = duration
		b.hasEWMA = true
		return
	}
	// ewma = (1 - α) * ewma + α * latest
	b.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(b.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the exponentially weighted moving average response time.
// Returns 0 if no responses have been recorded yet.
func (b *Backend) EWMATime() time.Duration {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.hasEWMA {
		return 0
	}

	return b.ewmaResponseTime
}

// New creates a Backend for u that fetches through client.
// The backend starts in a healthy state.
func New(u *url.URL, client *http.Client) *Backend {
	if client == nil {
		client = http.DefaultClient
	}

	return &Backend{
		url:       u,
		client:    client,
		isHealthy: true,
	}
}
