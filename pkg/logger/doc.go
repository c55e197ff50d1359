// Package logger builds the application's structured logger on log/slog.
// Development uses a text handler and production a JSON handler; both carry
// an environment attribute. Output can additionally go to a size-rotated
// file.
package logger
