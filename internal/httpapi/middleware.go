package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/foundly/contact-service/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// withAuth resolves the bearer token to caller claims and rejects
// unauthenticated requests. There is no anonymous fallback.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			respondErrorStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", "bearer token required")
			return
		}

		claims, err := s.verifier.Verify(token)
		if err != nil {
			respondErrorStatus(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerFrom returns the authenticated caller's claims. The auth middleware
// guarantees presence on every routed request.
func callerFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}
