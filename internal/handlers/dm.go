package handlers

import (
	"net/http"
	"strings"

	"github.com/xasusq-eng/Kovers/internal/api/middleware"
	"github.com/xasusq-eng/Kovers/internal/metrics"
)

// CreateDMRequest represents the direct message room request.
type CreateDMRequest struct {
	Username string `json:"username"`
}

// CreateDM returns the DM room between the caller and the named user,
// creating it on first use. Repeated calls (from either side) return the
// same room.
func (h *Handler) CreateDM(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateDMRequest
	if !h.decode(w, r, &req) {
		return
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		h.Error(w, http.StatusBadRequest, "username is required")
		return
	}

	room, created, err := h.store.CreateOrGetDM(r.Context(), user.ID, username)
	if err != nil {
		h.storeError(w, err)
		return
	}
	if created {
		metrics.DMRoomsCreated.Inc()
	}

	h.JSON(w, http.StatusCreated, RoomResponse{Room: room})
}
