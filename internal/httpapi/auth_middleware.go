package httpapi

import (
	"context"
	"net/http"
	"strings"

	"ShifaPortalwebserver/internal/auth"
	"ShifaPortalwebserver/internal/domain"
)

func CurrentClaims(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

// requireAuth parses the Authorization bearer token and puts the claims on
// the request context.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		claims, err := a.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func (a *api) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := CurrentClaims(r.Context())
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		if claims.Role != domain.RoleAdmin {
			WriteDomainError(w, domain.ErrForbidden)
			return
		}
		next(w, r)
	})
}
