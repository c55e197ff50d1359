// Package registry provides a concurrency-safe name to value map used by the
// circuit breaker and health check registries. Names are unique: registering
// a name twice is a programming error reported as DuplicateNameError.
package registry
