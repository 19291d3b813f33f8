package handlers

import (
	"net/http"

	"github.com/xasusq-eng/Kovers/internal/api/middleware"
	"github.com/xasusq-eng/Kovers/internal/metrics"
	"github.com/xasusq-eng/Kovers/internal/models"
)

// StartCallRequest represents the call start request.
type StartCallRequest struct {
	RoomID string          `json:"roomId" validate:"required"`
	Type   models.CallType `json:"type" validate:"required,oneof=voice video"`
}

// CallIDRequest carries a call id for join/end.
type CallIDRequest struct {
	CallID string `json:"callId" validate:"required"`
}

// CallResponse wraps a single call.
type CallResponse struct {
	Call *models.Call `json:"call"`
}

// CallListResponse wraps the active calls of a room (zero or one entry).
type CallListResponse struct {
	Calls []*models.Call `json:"calls"`
}

// ListCalls returns the room's active calls for polling clients.
func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		h.Error(w, http.StatusBadRequest, "roomId is required")
		return
	}

	calls, err := h.store.ActiveCalls(r.Context(), roomID, user.ID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, CallListResponse{Calls: calls})
}

// StartCall starts a call in a room, or returns the already active one
// unchanged. 201 marks a freshly created call, 200 an existing one.
func (h *Handler) StartCall(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req StartCallRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	call, created, err := h.store.StartCall(r.Context(), req.RoomID, user.ID, req.Type)
	if err != nil {
		h.storeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		metrics.CallsStarted.WithLabelValues(string(call.Type)).Inc()
	}
	h.JSON(w, status, CallResponse{Call: call})
}

// JoinCall adds the caller to an active call; joining twice is a no-op.
func (h *Handler) JoinCall(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CallIDRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	call, err := h.store.JoinCall(r.Context(), req.CallID, user.ID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, CallResponse{Call: call})
}

// EndCall transitions an active call to ended. Ended calls disappear
// from active queries and later join/end attempts read as not found.
func (h *Handler) EndCall(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CallIDRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	call, err := h.store.EndCall(r.Context(), req.CallID, user.ID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, CallResponse{Call: call})
}
