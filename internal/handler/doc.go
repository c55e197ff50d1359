// Package handler implements the instance-scoped routes: ping, the upstream
// item list behind the circuit breaker, and greetings with request
// validation. Handlers return errors; a single failure handler maps them to
// status codes, logs them and counts validation failures.
package handler
