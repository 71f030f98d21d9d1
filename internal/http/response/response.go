// Package response writes the gateway's JSON envelope. Every body carries the
// request id so the admin UI can quote it when reporting a failure.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type Envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Error   *Problem `json:"error,omitempty"`
	Meta    Meta     `json:"meta"`
}

// Problem is the error half of the envelope. Code is a stable machine value
// such as SESSION_EXPIRED; Message is safe to show to an operator.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, Envelope{Success: true, Data: data, Meta: metaFor(r)})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	write(w, r, status, Envelope{
		Error: &Problem{Code: code, Message: message, Details: details},
		Meta:  metaFor(r),
	})
}

// write never lets a browser or proxy keep a copy: bodies may hold profile
// data tied to the current session.
func write(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.DebugContext(r.Context(), "write response body failed", "status", status, "error", err)
	}
}

func RequestID(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get(chimiddleware.RequestIDHeader); id != "" {
		return id
	}
	return "req-unknown"
}

func metaFor(r *http.Request) Meta {
	return Meta{RequestID: RequestID(r), Timestamp: time.Now().UTC()}
}
