// Package strategy picks which instance serves a request:
//
//   - Round Robin: sequential distribution across instances
//   - Random: uniform random selection
//   - Least Connections: instance with the fewest in-flight requests
//   - Least Response Time: EWMA response time weighted by in-flight requests
//   - Client Hash: consistent hashing on the client address for affinity
//
// Callers pass only live instances.
package strategy
