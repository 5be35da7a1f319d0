package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"banter/internal/auth"
)

type contextKey int

const claimsKey contextKey = iota

// Auth validates the Bearer session token and stores its claims on the
// request context.
func Auth(jwtKey string, blacklist auth.TokenBlacklist) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ValidateToken(r.Context(), strings.TrimPrefix(header, "Bearer "), jwtKey, blacklist)
			if err != nil {
				http.Error(w, "invalid session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom retrieves the session claims stored by Auth.
func ClaimsFrom(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.SessionClaims)
	return claims, ok
}
