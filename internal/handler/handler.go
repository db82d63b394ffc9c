package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/ab-router/internal/assignment"
	"github.com/angeloszaimis/ab-router/internal/backend"
	"github.com/angeloszaimis/ab-router/internal/directory"
	"github.com/angeloszaimis/ab-router/internal/metrics"
	"github.com/angeloszaimis/ab-router/internal/rewrite"
	"github.com/angeloszaimis/ab-router/internal/upstream"
)

// Resolver returns the ordered pair of variant origins.
type Resolver interface {
	Variants(ctx context.Context) (directory.Pair, error)
}

// Assigner picks the variant for a request from its Cookie header.
type Assigner interface {
	Assign(cookieHeader string) assignment.Assignment
}

type ABTestHandler struct {
	logger           *slog.Logger
	directory        Resolver
	engine           Assigner
	backends         *backend.Registry
	rewriter         *rewrite.Rewriter
	metricsCollector *metrics.Collector
	cookieMaxAge     time.Duration
	cacheControl     string
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func (h *ABTestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)
	start := time.Now()
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

	h.logger.Info("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("proto", r.Proto),
		slog.String("host", r.Host),
		slog.String("user_agent", r.UserAgent()))

	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventRequestReceived,
		Timestamp: start,
	})

	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.fault(wrapped, fmt.Errorf("%v", rec))
			h.emitEvent(metrics.MetricEvent{
				Type:      metrics.EventRequestFinished,
				Timestamp: time.Now(),
				Outcome:   metrics.OutcomeFault,
			})
		}

		h.logger.Debug("Request completed",
			slog.String("client", clientIP),
			slog.Int("status", wrapped.statusCode),
			slog.Duration("duration", time.Since(start)))
	}()

	outcome := h.serve(wrapped, r)
	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventRequestFinished,
		Timestamp: time.Now(),
		Outcome:   outcome,
	})
}

func (h *ABTestHandler) serve(w *statusRecorder, r *http.Request) string {
	if !strings.EqualFold(r.Method, http.MethodGet) {
		w.Header().Set("Allow", http.MethodGet)
		writeText(w, http.StatusMethodNotAllowed, "Expected GET")
		return metrics.OutcomeMethodNotAllowed
	}

	pair, err := h.directory.Variants(r.Context())
	if err != nil {
		return h.fail(w, err, metrics.OutcomeDirectoryError)
	}

	assigned := h.engine.Assign(strings.Join(r.Header.Values("Cookie"), "; "))
	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventVariantAssigned,
		Timestamp: time.Now(),
		Variant:   assigned.Variant,
		Fresh:     assigned.Fresh,
	})

	variant, err := h.backends.Get(pair[assigned.Variant])
	if err != nil {
		h.fault(w, err)
		return metrics.OutcomeFault
	}

	h.logger.Info("Forwarding to variant",
		slog.Int("variant", assigned.Variant),
		slog.Bool("fresh", assigned.Fresh),
		slog.String("backend", variant.URL().String()))

	fetchStart := time.Now()
	res, err := variant.Fetch(r.Context())

	var statusErr *upstream.StatusError
	switch {
	case err == nil:
		defer res.Body.Close()
		h.recordResponse(assigned.Variant, time.Since(fetchStart), res.StatusCode)
	case errors.As(err, &statusErr):
		h.recordResponse(assigned.Variant, time.Since(fetchStart), statusErr.StatusCode)
		return h.fail(w, err, metrics.OutcomeBackendError)
	default:
		return h.fail(w, err, metrics.OutcomeBackendError)
	}

	header := w.Header()
	for key, values := range res.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	for _, key := range hopHeaders {
		header.Del(key)
	}
	// The rewritten body can differ in length.
	header.Del("Content-Length")

	if assigned.Fresh {
		header.Add("Set-Cookie", assignment.SetCookie(assigned.Variant, h.cookieMaxAge))
	}
	header.Set("Cache-Control", h.cacheControl)

	w.WriteHeader(res.StatusCode)

	if isHTML(res.Header.Get("Content-Type")) {
		err = h.rewriter.Rewrite(w, res.Body)
	} else {
		_, err = io.Copy(w, res.Body)
	}
	if err != nil {
		h.logger.Warn("Response stream interrupted",
			slog.Int("variant", assigned.Variant),
			slog.Any("err", err))
	}

	return metrics.OutcomeServed
}

// fail writes the response for an upstream or unexpected error and returns
// the outcome to report.
func (h *ABTestHandler) fail(w *statusRecorder, err error, outcome string) string {
	var statusErr *upstream.StatusError
	if !errors.As(err, &statusErr) {
		h.fault(w, err)
		return metrics.OutcomeFault
	}

	h.logger.Warn("Upstream returned an error",
		slog.String("outcome", outcome),
		slog.Int("status", statusErr.StatusCode),
		slog.Any("err", err))

	writeText(w, statusErr.StatusCode, statusErr.Body())
	return outcome
}

func (h *ABTestHandler) fault(w *statusRecorder, err error) {
	h.logger.Error("Unhandled fault", slog.Any("err", err))

	if w.wroteHeader {
		return
	}
	writeText(w, http.StatusInternalServerError, "Error thrown "+err.Error())
}

func (h *ABTestHandler) recordResponse(variant int, duration time.Duration, statusCode int) {
	h.emitEvent(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Variant:    variant,
		Duration:   duration,
		StatusCode: statusCode,
	})
}

func (h *ABTestHandler) emitEvent(event metrics.MetricEvent) {
	h.metricsCollector.Emit(event)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.statusCode = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// NewABTestHandler wires the pipeline. cookieMaxAge is the lifetime of the
// sticky cookie; cacheMaxAge goes into the public Cache-Control directive.
// collector may be nil.
func NewABTestHandler(
	logger *slog.Logger,
	dir Resolver,
	engine Assigner,
	backends *backend.Registry,
	rewriter *rewrite.Rewriter,
	collector *metrics.Collector,
	cookieMaxAge time.Duration,
	cacheMaxAge time.Duration,
) *ABTestHandler {
	return &ABTestHandler{
		logger:           logger,
		directory:        dir,
		engine:           engine,
		backends:         backends,
		rewriter:         rewriter,
		metricsCollector: collector,
		cookieMaxAge:     cookieMaxAge,
		cacheControl:     fmt.Sprintf("public, max-age=%d", int(cacheMaxAge/time.Second)),
	}
}
