package handlers

import (
	"net/http"

	"kiwi/internal/indexer"
	"kiwi/internal/logging"
)

// SyncStatusResponse describes the engine's current and last run.
type SyncStatusResponse struct {
	Running    bool                `json:"running"`
	Progress   *indexer.Progress   `json:"progress,omitempty"`
	LastResult *indexer.SyncResult `json:"lastResult,omitempty"`
	Summary    string              `json:"summary,omitempty"`
}

// GetSyncStatus returns live progress and the last finished run.
func (h *Handlers) GetSyncStatus(w http.ResponseWriter, _ *http.Request) {
	response := SyncStatusResponse{
		Running:    h.syncer.IsRunning(),
		LastResult: h.syncer.LastResult(),
	}
	if response.Running {
		progress := h.syncer.GetProgress()
		response.Progress = &progress
	}
	if response.LastResult != nil {
		response.Summary = response.LastResult.Summary()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, response)
}

// TriggerSync starts a sync in the background.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.syncer.TriggerSync() {
		writeJSONError(w, indexer.ErrSyncInProgress.Error(), http.StatusConflict)
		return
	}

	logging.Info("Sync triggered via API from %s", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "started"})
}
