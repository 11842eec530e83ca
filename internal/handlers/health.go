package handlers

import (
	"net/http"
	"runtime"
	"time"

	"kiwi/internal/indexer"
	"kiwi/internal/logging"
	"kiwi/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Ready            bool   `json:"ready"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	Syncing          bool   `json:"syncing"`
	LastSynced       string `json:"lastSynced,omitempty"`
	InitialSyncError string `json:"initialSyncError,omitempty"`
	LastState        string `json:"lastState,omitempty"`
	LastSummary      string `json:"lastSummary,omitempty"`

	Progress *indexer.Progress `json:"progress,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	TotalItems int `json:"totalItems,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := h.syncer.GetHealthStatus()

	response := HealthResponse{
		Ready:        healthStatus.Ready,
		Version:      startup.Version,
		Uptime:       healthStatus.Uptime,
		Syncing:      healthStatus.Syncing,
		LastState:    string(healthStatus.LastState),
		LastSummary:  healthStatus.LastSummary,
		Progress:     healthStatus.Progress,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if !healthStatus.LastSynced.IsZero() {
		response.LastSynced = healthStatus.LastSynced.Format(time.RFC3339)
	}

	if healthStatus.InitialSyncError != "" {
		response.InitialSyncError = healthStatus.InitialSyncError
		response.Status = statusDegraded
	}

	if stats, err := h.store.Stats(r.Context()); err != nil {
		logging.Debug("Health check could not read stats: %v", err)
	} else {
		response.TotalItems = stats.TotalItems
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only if not ready at all
	if !healthStatus.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the index can serve reads and the
// store answers.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !h.syncer.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
		return
	}

	if err := h.store.Ping(r.Context()); err != nil {
		logging.Warn("Readiness check: store unreachable: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "store_unreachable",
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{
		"status": "ready",
	})
}
