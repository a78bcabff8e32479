package opsapi

import (
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// adminAuth validates an admin bearer token, or falls back to a shared-secret
// header when no JWKS is configured (local bring-up). Admin requests carry no
// tenant context; handlers take tenant ids explicitly.
func (a *App) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.adminJWKS == nil {
			// dev mode: any non-empty X-Admin-Token passes
			if strings.TrimSpace(r.Header.Get("X-Admin-Token")) == "" {
				http.Error(w, "missing admin token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		tok := strings.TrimSpace(authz[len("Bearer "):])
		jt, err := jwt.Parse([]byte(tok),
			jwt.WithKeySet(a.adminJWKS),
			jwt.WithIssuer(a.adminIssuer),
			jwt.WithAudience(a.adminAud),
			jwt.WithValidate(true),
		)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		role, _ := jt.Get("role")
		if s, _ := role.(string); s != "operator" && s != "filegate_admin" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
