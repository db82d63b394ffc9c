// Package directory resolves the ordered pair of variant origin URLs.
//
// The pair is fetched from a configuration endpoint the first time it is
// needed and then kept for the lifetime of the process. Concurrent first
// callers share a single outbound fetch. A failed fetch is not remembered:
// the next caller tries again.
package directory
