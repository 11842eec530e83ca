// Package middleware provides the HTTP middleware shared by the kiwi API.
//
// Logger writes one access line per request through the logging package,
// optionally leaving out the health probes. Metrics records request counts
// and latencies labelled by gorilla/mux route template.
package middleware
