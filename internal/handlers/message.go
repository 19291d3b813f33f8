package handlers

import (
	"net/http"
	"strconv"

	"github.com/xasusq-eng/Kovers/internal/api/middleware"
	"github.com/xasusq-eng/Kovers/internal/metrics"
	"github.com/xasusq-eng/Kovers/internal/models"
)

// PostMessageRequest represents the post message request.
type PostMessageRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	Text   string `json:"text"`
}

// MessageResponse wraps a single message.
type MessageResponse struct {
	Message *models.Message `json:"message"`
}

// MessageListResponse wraps a poll result.
type MessageListResponse struct {
	Messages []*models.Message `json:"messages"`
}

// GetMessages is the polling read. With ?since=<unix ms> it returns only
// messages strictly newer than the cursor; clients use the created_at of
// the last message as the next cursor. Two messages sharing a
// millisecond are indistinguishable to the cursor, so a sibling can be
// skipped on reconnect; known limitation of the timestamp cursor.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
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

	var since int64
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		s, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid since cursor")
			return
		}
		since = s
	}

	messages, err := h.store.MessagesSince(r.Context(), roomID, user.ID, since)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

// PostMessage appends a message to a room the caller belongs to.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req PostMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	msg, err := h.store.AppendMessage(r.Context(), req.RoomID, user.ID, req.Text)
	if err != nil {
		h.storeError(w, err)
		return
	}

	metrics.MessagesPosted.Inc()
	h.JSON(w, http.StatusCreated, MessageResponse{Message: msg})
}
