// Package broadcast fans a stream of values out to named subscribers.
//
// Delivery is reliable: Publish waits for every live subscriber to accept
// the value rather than dropping it. Publications are serialised, so each
// subscriber observes values in publish order.
package broadcast
