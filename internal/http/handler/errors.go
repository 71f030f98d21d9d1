package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/http/response"
	"github.com/groceryplus/admin-console/internal/service"
)

// Navigator is the slice of navigation the gateway needs: the pending
// hard navigation left behind by a session recovery.
type Navigator interface {
	Consume() (string, bool)
}

type errorWriter struct {
	loginRoute string
	nav        Navigator
}

// write maps an upstream failure onto the gateway envelope. A rejected
// session becomes 401 with the login route in Location; serviceCredential
// marks calls made with the CMS token, whose rejection says nothing about
// the admin session.
func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error, serviceCredential bool) {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, service.ErrNoFiles) || errors.Is(err, errBadParam) {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		slog.ErrorContext(r.Context(), "gateway request failed", "path", r.URL.Path, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	switch {
	case apiErr.IsAuthFailure() && serviceCredential:
		response.Error(w, r, http.StatusBadGateway, "UPSTREAM_UNAUTHORIZED", "content service rejected its credentials", nil)
	case apiErr.IsAuthFailure():
		route := e.loginRoute
		if e.nav != nil {
			if pending, ok := e.nav.Consume(); ok {
				route = pending
			}
		}
		w.Header().Set("Location", route)
		response.Error(w, r, http.StatusUnauthorized, "SESSION_EXPIRED", "your session has expired, please log in again", map[string]string{"login": route})
	case client.IsNetworkFailure(apiErr):
		response.Error(w, r, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "upstream unavailable", map[string]string{"kind": string(apiErr.Kind)})
	case apiErr.Status >= 400 && apiErr.Status < 500:
		response.Error(w, r, apiErr.Status, "UPSTREAM_REJECTED", apiErr.Message, nil)
	case apiErr.Status >= 500:
		response.Error(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "upstream error", map[string]int{"status": apiErr.Status})
	default:
		slog.ErrorContext(r.Context(), "gateway request failed", "path", r.URL.Path, "kind", apiErr.Kind, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
