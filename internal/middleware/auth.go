// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"

	"github.com/akozyreva/cloudkeep/internal/models"
)

type ctxKey string

const principalKey ctxKey = "principal"

// PrincipalSource resolves the signed-in identity. The session gate
// implements it.
type PrincipalSource interface {
	Principal() (*models.Principal, error)
}

// RequireSession blocks requests made without a live session.
//
// The gate is consulted on every request; on success the principal is stored
// in the request context so no protected handler ever observes a missing
// principal. Without a session the request is rejected with 401, which the
// dashboard treats as its redirect-to-login signal.
func RequireSession(gate PrincipalSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := gate.Principal()
			if err != nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipalFromContext extracts the principal stored by RequireSession.
// Returns nil if not present.
func GetPrincipalFromContext(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalKey).(*models.Principal)
	return p
}
