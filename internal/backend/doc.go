// Package backend fetches pages from the variant origins. Each Backend issues
// plain GET requests to its origin URL, keeps an EWMA of response times and a
// health flag set by the probe, and is shared through a URL-keyed Registry.
package backend
