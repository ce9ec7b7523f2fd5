package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ilyasfares/sakina/backend/pkg/utils"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserID returns the authenticated user id stored by Auth, or "" when absent.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID injects a user id into the context. Exported for handler tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Identity extracts the stable user id carried by a request: the X-User-ID
// header first, then a bearer token. Empty when the request carries neither.
func Identity(r *http.Request) string {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			userID = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	return userID
}

// Auth resolves the caller's stable user id from the X-User-ID header or a
// bearer token, rejecting requests that carry neither.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := Identity(r)
		if userID == "" {
			utils.RespondError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "a user identity is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
