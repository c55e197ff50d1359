// Package upstream fetches the item list from the external list API. The
// target host, port and path come from the configuration snapshot in effect
// for the request.
package upstream
