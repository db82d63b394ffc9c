// Package handler implements the request pipeline of the router: method
// gate, variant directory lookup, sticky or fresh assignment, variant fetch,
// cookie and cache headers, and HTML rewriting. Upstream failures are passed
// through with their status; anything else becomes a 500 "Error thrown" reply.
package handler
