// Package handlers provides the HTTP API of the sync engine.
//
// It includes handlers for:
//   - Health, liveness and readiness probes
//   - Sync status and manual triggering
//   - Indexed item lookup and index statistics
//   - Version information and Prometheus metrics
package handlers
