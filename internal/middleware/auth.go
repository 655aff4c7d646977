package middleware

import (
	"net/http"
	"strings"

	"github.com/brokerline/broker-be/internal/auth"
	"github.com/brokerline/broker-be/internal/http/respond"
)

// RequireAuth verifies the bearer token and places the resulting identity
// on the request context. Requests without a valid token never reach the
// wrapped handler.
func RequireAuth(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				respond.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			identity, err := tokens.Parse(strings.TrimSpace(header[len(prefix):]))
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}
