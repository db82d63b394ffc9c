// Package upstream holds what the router's outbound calls share: the HTTP
// client they go through and the error returned when an upstream answers
// with a non-2xx status.
package upstream

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusError is returned when an upstream answers with a non-2xx status, or
// with a body the router cannot use. Its status is mirrored to the client.
type StatusError struct {
	StatusCode int
	StatusText string
	Err        error
}

func (e *StatusError) Error() string {
	msg := e.StatusText + " status: " + strconv.Itoa(e.StatusCode)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Body is the plain-text body sent to the client for this error.
func (e *StatusError) Body() string {
	return fmt.Sprintf("%s status: %d", e.StatusText, e.StatusCode)
}

// FromResponse builds a StatusError from res's status line.
func FromResponse(res *http.Response) *StatusError {
	return &StatusError{
		StatusCode: res.StatusCode,
		StatusText: StatusText(res),
	}
}

// BadGateway wraps err as a 502 for payloads the router cannot interpret.
func BadGateway(err error) *StatusError {
	return &StatusError{
		StatusCode: http.StatusBadGateway,
		StatusText: http.StatusText(http.StatusBadGateway),
		Err:        err,
	}
}

// StatusText returns the reason phrase of res, falling back to the standard
// text for its code.
func StatusText(res *http.Response) string {
	if code, text, ok := strings.Cut(res.Status, " "); ok && code == strconv.Itoa(res.StatusCode) && text != "" {
		return text
	}
	return http.StatusText(res.StatusCode)
}

// OK reports whether code is a 2xx status.
func OK(code int) bool {
	return code >= 200 && code < 300
}

// NewClient returns the client used for every outbound call.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
