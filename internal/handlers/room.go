package handlers

import (
	"net/http"

	"github.com/xasusq-eng/Kovers/internal/api/middleware"
	"github.com/xasusq-eng/Kovers/internal/models"
)

// CreateRoomRequest represents the group room creation request.
type CreateRoomRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
}

// RoomResponse wraps a single room.
type RoomResponse struct {
	Room *models.Room `json:"room"`
}

// RoomListResponse wraps the caller's room list.
type RoomListResponse struct {
	Rooms []*models.Room `json:"rooms"`
}

// ListRooms returns the caller's rooms in creation order. DM rooms are
// titled with the other party's username.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	rooms, err := h.store.ListRoomsFor(r.Context(), user.ID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, RoomListResponse{Rooms: rooms})
}

// CreateRoom creates a group room. Member usernames that do not resolve
// are silently dropped; the creator is always a member.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateRoomRequest
	if !h.decode(w, r, &req) {
		return
	}

	room, err := h.store.CreateGroup(r.Context(), user.ID, req.Name, req.Members)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.JSON(w, http.StatusCreated, RoomResponse{Room: room})
}
