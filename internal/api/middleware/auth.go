package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xasusq-eng/Kovers/internal/models"
	"github.com/xasusq-eng/Kovers/internal/store"
)

// TokenHeader carries the opaque session token on every authenticated
// request.
const TokenHeader = "X-Kovers-Token"

type contextKey string

const userContextKey contextKey = "user"

// AuthMiddleware resolves the session token into a user for handlers.
type AuthMiddleware struct {
	store store.Store
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(st store.Store) *AuthMiddleware {
	return &AuthMiddleware{store: st}
}

// RequireAuth rejects requests without a valid session token and puts
// the authenticated user on the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(TokenHeader)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		sess, err := m.store.GetSession(r.Context(), token)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		user, err := m.store.GetUserByID(r.Context(), sess.UserID)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// UserFromContext retrieves the authenticated user from the request context.
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
