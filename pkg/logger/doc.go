// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: JSON output in production, text
// everywhere else, with the environment and service name attached to every record.
package logger
