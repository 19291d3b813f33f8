package handlers

import (
	"net/http"
	"strings"

	"github.com/xasusq-eng/Kovers/internal/api/middleware"
)

const searchLimit = 10

// UserInfo is a public view of a user.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserSearchResponse wraps username search results.
type UserSearchResponse struct {
	Users []UserInfo `json:"users"`
}

// SearchUsers finds users by username substring, excluding the caller.
// At most 10 results; an empty query returns an empty list.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	users, err := h.store.SearchUsers(r.Context(), q, user.ID, searchLimit)
	if err != nil {
		h.storeError(w, err)
		return
	}

	out := make([]UserInfo, len(users))
	for i, u := range users {
		out[i] = UserInfo{ID: u.ID, Username: u.Username}
	}
	h.JSON(w, http.StatusOK, UserSearchResponse{Users: out})
}
