package middleware

import (
	"context"
	"net/http"
)

// UserIDHeader carries the caller's identity, set by the gateway in front
// of this service. Requests without it never reach a user-scoped handler.
const UserIDHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// RequireUser rejects requests that arrive without an identity header and
// stores the user id on the request context for handlers.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			http.Error(w, "missing "+UserIDHeader+" header", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user id from the request context. Empty
// means the handler is reachable without RequireUser, which is a routing
// bug.
func UserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}
