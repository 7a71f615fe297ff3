package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wolfman30/uootd-quotes/internal/auth"
)

type contextKey string

const adminSessionKey contextKey = "adminSession"

// RequireSession rejects requests without an admin session. Every failure
// gets the same 401 body.
func RequireSession(gate auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var session *auth.Session
			if gate != nil {
				session = gate.CurrentSession(r)
			}
			if session == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
				return
			}
			ctx := context.WithValue(r.Context(), adminSessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(adminSessionKey).(*auth.Session)
	return session, ok
}
