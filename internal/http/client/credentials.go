package client

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderCSRF          = "X-CSRF-TOKEN"
	HeaderRequestID     = "X-Request-Id"
	CSRFCookieName      = "XSRF-TOKEN"
	loginPathSuffix     = "/auth/login"
)

// CredentialSource exposes the credentials of the current session.
type CredentialSource interface {
	Token() string
	CSRFToken() string
}

// AttachCredentials decorates an outgoing request with the session bearer
// token and anti-forgery header. It never fails. The login endpoint never
// carries a CSRF header.
func AttachCredentials(req *http.Request, creds CredentialSource, jar http.CookieJar, logger *slog.Logger) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if creds == nil {
		return
	}
	if token := creds.Token(); token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+token)
	}

	if IsLoginEndpoint(req.URL.Path) {
		req.Header.Del(HeaderCSRF)
		return
	}
	csrf := creds.CSRFToken()
	if csrf == "" && jar != nil {
		for _, c := range jar.Cookies(req.URL) {
			if c.Name == CSRFCookieName {
				csrf = c.Value
				break
			}
		}
	}
	if csrf == "" {
		if logger != nil {
			logger.Warn("no CSRF token available for request", "method", req.Method, "path", req.URL.Path)
		}
		return
	}
	req.Header.Set(HeaderCSRF, csrf)
}

func IsLoginEndpoint(path string) bool {
	return strings.HasSuffix(strings.TrimRight(path, "/"), loginPathSuffix)
}
