package auth

import (
	"net/http"
	"strings"

	"github.com/medrevise/medrevise/internal/rbac"
)

// Middleware rejects requests without a valid bearer token and stores the
// subject and role on the request context.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := svc.Parse(raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := WithSubject(r.Context(), claims.Sub)
			ctx = rbac.WithRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AttachRoleFromStore replaces the token role with the stored one, so role
// changes apply without forcing a new login. When the lookup fails and
// claimFallback is set the token role stays in effect, otherwise the request
// is rejected.
func AttachRoleFromStore(users UserStore, claimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok := SubjectFromContext(r.Context())
			if !ok {
				http.Error(w, "missing subject", http.StatusUnauthorized)
				return
			}
			u, err := users.GetByID(r.Context(), sub)
			if err != nil {
				if claimFallback {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "unknown user", http.StatusUnauthorized)
				return
			}
			ctx := rbac.WithRole(r.Context(), u.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// Browsers cannot set headers on websocket upgrades, so the token may
	// ride in the query string instead.
	return r.URL.Query().Get("token")
}
