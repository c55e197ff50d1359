// Package instance runs independent request-handling units that share one
// process. Each instance holds its own configuration snapshot and swaps it
// atomically when a change event arrives, so requests never observe a
// partially applied configuration.
//
// The Coordinator owns the instances, subscribes them to the configuration
// broadcaster and tracks the latest published snapshot.
package instance
