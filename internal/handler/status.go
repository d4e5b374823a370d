package handler

import (
	"log"
	"net/http"
)

// StatusHandler serves the public shop status used by the customer client
// before it renders the order form.
type StatusHandler struct {
	store SettingsStore
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(store SettingsStore) *StatusHandler {
	return &StatusHandler{store: store}
}

// Get handles GET /api/public/status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	stopped, err := readStopFlag(r.Context(), h.store)
	if err != nil {
		log.Printf("ERROR: read stop flag: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	message := "accepting orders"
	if stopped {
		message = "ordering is temporarily suspended"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"stopped": stopped,
		"message": message,
	})
}
