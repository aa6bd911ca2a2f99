package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/username/fundfolio/backend/src/database"
	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/utils"
)

// maxStatePayloadBytes bounds the uploaded state document.
const maxStatePayloadBytes = 16 << 20

// StateHandler serves the whole-document state API: the snapshot is read and
// replaced as one unit, never patched field by field.
type StateHandler struct {
	store *database.StateStore
}

func NewStateHandler(store *database.StateStore) *StateHandler {
	return &StateHandler{store: store}
}

// GetState returns the normalized current snapshot.
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.Get()
	if err != nil {
		logger.FromContext(r.Context()).Error("Reading state failed", "error", err)
		utils.SendJSONError(w, "Could not read state", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

// ReplaceState swaps in a full state document and echoes the normalized form.
func (h *StateHandler) ReplaceState(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStatePayloadBytes))
	if err != nil {
		utils.SendJSONError(w, "State payload too large or unreadable", http.StatusBadRequest)
		return
	}
	state, err := h.store.Replace(raw)
	if err != nil {
		ctxLogger.Warn("State replace rejected", "error", err)
		utils.SendJSONError(w, "Invalid state payload", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}
