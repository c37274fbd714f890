package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
)

type contextKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the caller's claims, if authenticated.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok
}

// Authenticate rejects requests without a valid "Bearer" token and stores the
// claims in the request context.
func (m *Manager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			deny(w, http.StatusUnauthorized, "Access denied. No token provided.")
			return
		}
		claims, err := m.Verify(token)
		if err != nil {
			deny(w, http.StatusUnauthorized, "Invalid token.")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole allows the request only if the authenticated caller has one
// of roles. It must run after Authenticate.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := FromContext(r.Context())
			if !ok || !slices.Contains(roles, claims.Role) {
				deny(w, http.StatusForbidden, "Access denied. Insufficient role.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Editor chains Authenticate and RequireRole(faculty, admin), the gate for
// every display and moderation write.
func (m *Manager) Editor(next http.Handler) http.Handler {
	return m.Authenticate(RequireRole(RoleFaculty, RoleAdmin)(next))
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
