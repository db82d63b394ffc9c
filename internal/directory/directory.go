package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/angeloszaimis/ab-router/internal/upstream"
)

type State int

const (
	StateUnresolved State = iota
	StateResolving
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "UNRESOLVED"
	case StateResolving:
		return "RESOLVING"
	case StateResolved:
		return "RESOLVED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Pair holds the origin URLs of variant 0 and variant 1.
type Pair [2]string

const maxPayloadBytes = 1 << 20

var (
	ErrMissingVariants = errors.New("payload has no variants array")
	ErrVariantCount    = errors.New("variants must contain exactly two entries")
	ErrVariantURL      = errors.New("variant is not an absolute http(s) URL")
	ErrNotJSON         = errors.New("payload is not a JSON document")
)

type Directory struct {
	endpoint string
	cacheTTL time.Duration
	client   *http.Client
	logger   *slog.Logger

	group   singleflight.Group
	fetches atomic.Int64

	mutex   sync.RWMutex
	state   State
	pair    Pair
	lastErr error
}

func New(endpoint string, cacheTTL time.Duration, client *http.Client, logger *slog.Logger) *Directory {
	if client == nil {
		client = http.DefaultClient
	}

	return &Directory{
		endpoint: endpoint,
		cacheTTL: cacheTTL,
		client:   client,
		logger:   logger,
	}
}

// Variants returns the variant pair, fetching it on first use.
//
// Upstream answers that are non-2xx or not shaped like a variant list are
// returned as *upstream.StatusError. Transport failures are returned as is.
func (d *Directory) Variants(ctx context.Context) (Pair, error) {
	if pair, ok := d.Cached(); ok {
		return pair, nil
	}

	// The fetch is shared by every waiting caller, so it must not die with
	// the first caller's request.
	fetchCtx := context.WithoutCancel(ctx)
	ch := d.group.DoChan("variants", func() (interface{}, error) {
		return d.resolve(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return Pair{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Pair{}, res.Err
		}
		return res.Val.(Pair), nil
	}
}

// Cached returns the pair if it has already been resolved. It never fetches.
func (d *Directory) Cached() (Pair, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if d.state != StateResolved {
		return Pair{}, false
	}
	return d.pair, true
}

// State returns the current resolution state.
func (d *Directory) State() State {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.state
}

// Err returns the error of the last failed resolution, if the directory is
// in the failed state.
func (d *Directory) Err() error {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.lastErr
}

// Fetches returns the number of outbound fetches made so far.
func (d *Directory) Fetches() int64 {
	return d.fetches.Load()
}

func (d *Directory) resolve(ctx context.Context) (Pair, error) {
	d.mutex.Lock()
	if d.state == StateResolved {
		pair := d.pair
		d.mutex.Unlock()
		return pair, nil
	}
	d.state = StateResolving
	d.mutex.Unlock()

	pair, err := d.fetch(ctx)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if err != nil {
		d.state = StateFailed
		d.lastErr = err
		d.logger.Warn("Variant directory resolution failed",
			slog.String("endpoint", d.endpoint),
			slog.Any("err", err))
		return Pair{}, err
	}

	d.state = StateResolved
	d.pair = pair
	d.lastErr = nil
	d.logger.Info("Variant directory resolved",
		slog.String("variant0", pair[0]),
		slog.String("variant1", pair[1]))

	return pair, nil
}

func (d *Directory) fetch(ctx context.Context) (Pair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint, nil)
	if err != nil {
		return Pair{}, fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Cache-Control", fmt.Sprintf("max-age=%d", int(d.cacheTTL/time.Second)))

	d.fetches.Add(1)
	res, err := d.client.Do(req)
	if err != nil {
		return Pair{}, fmt.Errorf("fetch variant directory: %w", err)
	}
	defer res.Body.Close()

	if !upstream.OK(res.StatusCode) {
		return Pair{}, upstream.FromResponse(res)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxPayloadBytes))
	if err != nil {
		return Pair{}, fmt.Errorf("read variant directory: %w", err)
	}

	if !strings.Contains(res.Header.Get("Content-Type"), "application/json") {
		d.logger.Debug("Variant directory served non-JSON content type",
			slog.String("content_type", res.Header.Get("Content-Type")))
	}

	pair, err := parse(body)
	if err != nil {
		return Pair{}, upstream.BadGateway(err)
	}

	return pair, nil
}

func parse(body []byte) (Pair, error) {
	if !gjson.ValidBytes(body) {
		return Pair{}, ErrNotJSON
	}

	variants := gjson.GetBytes(body, "variants")
	if !variants.IsArray() {
		return Pair{}, ErrMissingVariants
	}

	entries := variants.Array()
	if len(entries) != len(Pair{}) {
		return Pair{}, fmt.Errorf("%w: got %d", ErrVariantCount, len(entries))
	}

	var pair Pair
	for i, entry := range entries {
		if entry.Type != gjson.String {
			return Pair{}, fmt.Errorf("%w: entry %d is %s", ErrVariantURL, i, entry.Type)
		}

		u, err := url.Parse(entry.Str)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Pair{}, fmt.Errorf("%w: %q", ErrVariantURL, entry.Str)
		}

		pair[i] = entry.Str
	}

	return pair, nil
}
