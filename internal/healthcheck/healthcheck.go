package healthcheck

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/ab-router/internal/backend"
	"github.com/angeloszaimis/ab-router/internal/directory"
	"github.com/angeloszaimis/ab-router/internal/metrics"
	"github.com/angeloszaimis/ab-router/internal/upstream"
)

// Resolver exposes an already resolved variant pair without fetching it.
type Resolver interface {
	Cached() (directory.Pair, bool)
}

// Probe checks every interval whether the variant origins answer a plain GET
// with a 2xx status. Nothing is probed until the resolver has a pair.
func Probe(
	ctx context.Context,
	resolver Resolver,
	registry *backend.Registry,
	interval time.Duration,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health probe stopped")
			return

		case <-ticker.C:
			pair, ok := resolver.Cached()
			if !ok {
				continue
			}

			for _, rawURL := range pair {
				b, err := registry.Get(rawURL)
				if err != nil {
					continue
				}
				check(ctx, client, b, collector, logger)
			}
		}
	}
}

func check(ctx context.Context, client *http.Client, b *backend.Backend, collector *metrics.Collector, logger *slog.Logger) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL().String(), nil)
	if err != nil {
		return
	}

	healthy := false
	res, err := client.Do(req)
	if err == nil {
		healthy = upstream.OK(res.StatusCode)
		res.Body.Close()
	}

	if !b.SetHealthy(healthy) {
		return
	}

	collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventHealthChanged,
		Timestamp: time.Now(),
		Backend:   b.URL().String(),
		Healthy:   healthy,
	})

	if healthy {
		logger.Info("Variant origin is back up",
			slog.String("server", b.URL().String()))
	} else {
		logger.Warn("Variant origin is down",
			slog.String("server", b.URL().String()))
	}
}
