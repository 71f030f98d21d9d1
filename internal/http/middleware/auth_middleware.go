package middleware

import (
	"net/http"
	"time"

	"github.com/groceryplus/admin-console/internal/domain"
	"github.com/groceryplus/admin-console/internal/http/response"
)

// SessionReader is the read side of the console session.
type SessionReader interface {
	IsAuthenticated(now time.Time) bool
	UserDetails() domain.Profile
}

// RequireSession rejects requests while no valid session exists and points
// the caller at the login route.
func RequireSession(sessions SessionReader, loginRoute string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.IsAuthenticated(time.Now()) {
				w.Header().Set("Location", loginRoute)
				response.Error(w, r, http.StatusUnauthorized, "SESSION_EXPIRED", "sign in required", map[string]string{"login": loginRoute})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
