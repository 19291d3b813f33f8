package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/xasusq-eng/Kovers/internal/api/middleware"
	"github.com/xasusq-eng/Kovers/internal/auth"
	"github.com/xasusq-eng/Kovers/internal/metrics"
	"github.com/xasusq-eng/Kovers/internal/store"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GuestRequest represents the guest join request body.
type GuestRequest struct {
	Username string `json:"username"`
}

// TokenResponse is returned by login and guest join.
type TokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Register creates a password-backed account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := h.validate.Struct(req); err != nil {
		h.Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if _, err := h.store.CreateUser(r.Context(), req.Username, hash, false); err != nil {
		h.storeError(w, err)
		return
	}

	metrics.UsersRegistered.Inc()
	h.JSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

// Login verifies credentials and issues a session token, invalidating
// any previous session for the user.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := h.validate.Struct(req); err != nil {
		h.Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.store.GetUserByName(r.Context(), req.Username)
	if errors.Is(err, store.ErrUserNotFound) {
		h.Error(w, http.StatusUnauthorized, store.ErrInvalidCredentials.Error())
		return
	}
	if err != nil {
		h.storeError(w, err)
		return
	}
	// Guests have no password and cannot log in with one.
	if user.PasswordHash == "" || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		h.Error(w, http.StatusUnauthorized, store.ErrInvalidCredentials.Error())
		return
	}

	sess, err := h.store.CreateSession(r.Context(), user.ID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, TokenResponse{Token: sess.Token, Username: user.Username})
}

// Guest creates a passwordless user and logs it in directly.
func (h *Handler) Guest(w http.ResponseWriter, r *http.Request) {
	var req GuestRequest
	if !h.decode(w, r, &req) {
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len([]rune(username)) > 24 {
		username = string([]rune(username)[:24])
	}
	if username == "" {
		h.Error(w, http.StatusBadRequest, "username is required")
		return
	}
	if !usernameRegex.MatchString(username) {
		h.Error(w, http.StatusBadRequest, "username must be 3-24 lowercase letters, digits or underscores")
		return
	}

	user, err := h.store.CreateUser(r.Context(), username, "", true)
	if err != nil {
		h.storeError(w, err)
		return
	}
	sess, err := h.store.CreateSession(r.Context(), user.ID)
	if err != nil {
		h.storeError(w, err)
		return
	}

	metrics.GuestsJoined.Inc()
	h.JSON(w, http.StatusCreated, TokenResponse{Token: sess.Token, Username: user.Username})
}

// Logout destroys the caller's session. Destroying an absent token is a
// no-op, so logout always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.TokenHeader)
	if err := h.store.DeleteSession(r.Context(), token); err != nil {
		h.storeError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// MeResponse represents the authenticated identity.
type MeResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.JSON(w, http.StatusOK, MeResponse{ID: user.ID, Username: user.Username})
}
