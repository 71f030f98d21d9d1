package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/groceryplus/admin-console/internal/http/response"
)

// RequireRole limits a route to the given roles. A profile without a role is
// let through; the backend stays the authority on permissions.
func RequireRole(sessions SessionReader, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := sessions.UserDetails().Role()
			if role != "" && !slices.Contains(roles, role) {
				slog.WarnContext(r.Context(), "role denied", "role", role, "path", r.URL.Path)
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient role", map[string]any{"required": roles})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
