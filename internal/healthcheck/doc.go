// Package healthcheck holds named health probes and aggregates their outcomes.
//
// Each probe runs with its own timeout; a probe that does not answer in time is
// reported as failed instead of holding up the aggregate. Probe names may use
// "/" to group checks, producing a tree-shaped status whose overall outcome is
// the logical AND of its leaves. The package also serves the liveness and
// readiness HTTP endpoints and can watch probes periodically, logging when a
// dependency goes down or comes back up.
package healthcheck
