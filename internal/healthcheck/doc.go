// Package healthcheck periodically probes the variant origins once the
// directory has resolved them. The result is recorded on each backend and
// reported to metrics; it never changes which variant a client is routed to.
package healthcheck
