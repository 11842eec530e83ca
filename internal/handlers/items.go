package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"kiwi/internal/database"
	"kiwi/internal/logging"
)

// GetItem returns one indexed item with its folders and tags.
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeJSONError(w, "item id required", http.StatusBadRequest)
		return
	}

	item, err := h.store.GetItem(r.Context(), id)
	if errors.Is(err, database.ErrItemNotFound) {
		writeJSONError(w, "item not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to get item %s: %v", id, err)
		writeJSONError(w, "failed to get item", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, item)
}

// GetStats returns index counts and the last finalized sync state.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		logging.Error("Failed to get stats: %v", err)
		writeJSONError(w, "failed to get stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, stats)
}
