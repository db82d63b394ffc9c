// Package httpserver runs the router's listeners with validated addresses,
// conservative timeouts and graceful shutdown.
package httpserver
