package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit records a session-affecting gateway action at info level under the
// "audit" message. Callers pass token fingerprints, never raw credentials.
func Audit(r *http.Request, event string, attrs ...any) {
	reqID := chimiddleware.GetReqID(r.Context())
	if reqID == "" {
		reqID = r.Header.Get(chimiddleware.RequestIDHeader)
	}
	slog.InfoContext(r.Context(), "audit",
		slog.String("event", event),
		slog.Group("request",
			slog.String("id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
		),
		slog.Group("detail", attrs...),
	)
}
