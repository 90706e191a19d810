package server

import (
	"context"
	"net/http"
	"strings"

	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/server/authctx"
)

// TokenAuthenticator validates a presented bearer token. The token store is
// authoritative; a token absent from the store is invalid even if its
// signature would verify.
type TokenAuthenticator interface {
	ValidateToken(ctx context.Context, token string) (*domain.TokenRecord, error)
}

// AuthMiddleware authenticates the bearer token and sets the current user in
// the request context.
func AuthMiddleware(tokens TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			tokenStr := strings.TrimPrefix(auth, "Bearer ")
			record, err := tokens.ValidateToken(r.Context(), tokenStr)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := authctx.WithCurrentUser(r.Context(), authctx.CurrentUser{
				ID:    record.UserID,
				Email: record.UserName,
				Token: record.Token,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + http.StatusText(status) + `","message":"` + message + `"}`))
}
