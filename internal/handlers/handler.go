package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/xasusq-eng/Kovers/internal/store"
)

// usernameRegex matches valid usernames: lowercase letters, digits and
// underscores, 3-24 characters.
var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.Store
	validate *validator.Validate
}

// NewHandler creates a new Handler over the given store.
func NewHandler(st store.Store) *Handler {
	v := validator.New()
	// "username" backs the validate tags on the auth request bodies.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	return &Handler{store: st, validate: v}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON request body into dst, answering 400 itself on
// failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// storeError maps store sentinel errors onto the HTTP error taxonomy:
// 400 validation, 403 forbidden, 404 not found, 409 conflict, 500
// otherwise. The sentinel message is surfaced verbatim.
func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrRoomNotFound),
		errors.Is(err, store.ErrCallNotFound):
		h.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrEmptyName),
		errors.Is(err, store.ErrEmptyText),
		errors.Is(err, store.ErrSelfDM),
		errors.Is(err, store.ErrNotMember):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotInvited):
		h.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrUsernameTaken):
		h.Error(w, http.StatusConflict, err.Error())
	default:
		h.Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationMessage turns the first validator failure into a
// user-readable message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "required" {
			return "username is required"
		}
		return "username must be 3-24 lowercase letters, digits or underscores"
	case "Password":
		if fe.Tag() == "required" {
			return "password is required"
		}
		return "password must be 6-72 characters"
	case "RoomID":
		return "roomId is required"
	case "CallID":
		return "callId is required"
	case "Type":
		return "call type must be voice or video"
	}
	return "invalid request"
}
