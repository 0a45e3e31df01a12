// Package log provides structured logging on top of log/slog with
// automatic masking of credentials: the bestseller API key, SMTP
// passwords, and auth headers never appear in log output, even at debug
// level. The handler wraps any slog backend and is installed once at
// startup via slog.SetDefault.
package log
