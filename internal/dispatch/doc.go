// Package dispatch is the HTTP entry point for instance-scoped routes. It
// picks a live instance with the configured strategy, tracks in-flight
// requests and latency on it, and emits request metrics.
package dispatch
