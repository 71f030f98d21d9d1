package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type Kind string

const (
	KindAuth      Kind = "auth"
	KindCSRF      Kind = "csrf"
	KindForbidden Kind = "forbidden"
	KindClient    Kind = "client"
	KindServer    Kind = "server"
	KindTimeout   Kind = "timeout"
	KindNetwork   Kind = "network"
	KindSetup     Kind = "setup"
)

// APIError is the single error shape every outgoing request fails with.
type APIError struct {
	Kind    Kind
	Status  int
	Message string
	Method  string
	URL     string
	Body    []byte
	Cause   error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: %s (%d): %s", e.Method, e.URL, e.Kind, e.Status, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Cause }

// HasResponse is false when the request never reached the server or the
// server never answered.
func (e *APIError) HasResponse() bool { return e.Status > 0 }

// IsAuthFailure reports a server-side rejection of the session.
func (e *APIError) IsAuthFailure() bool {
	return e.Kind == KindAuth || e.Kind == KindCSRF
}

func IsAuthFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuthFailure()
}

func IsNetworkFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Kind == KindNetwork || apiErr.Kind == KindTimeout)
}

// IsClientFailure reports a 4xx rejection other than an auth failure.
func IsClientFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Kind == KindClient || apiErr.Kind == KindForbidden)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Classify maps the outcome of one exchange to an *APIError. It returns nil
// for a 2xx response.
func Classify(method, url string, status int, body []byte, cause error) *APIError {
	e := &APIError{Method: method, URL: url, Status: status, Body: body, Cause: cause}
	if status == 0 {
		switch {
		case cause == nil:
			e.Kind = KindNetwork
			e.Message = "no response"
		case isTimeout(cause):
			e.Kind = KindTimeout
			e.Message = "request timed out"
		default:
			e.Kind = KindNetwork
			e.Message = "network error"
		}
		return e
	}
	if status >= 200 && status < 300 {
		return nil
	}

	e.Message = extractMessage(body)
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
	case status == http.StatusForbidden && strings.Contains(e.Message, "CSRF"):
		e.Kind = KindCSRF
	case status == http.StatusForbidden && rejectsSession(e.Message):
		e.Kind = KindAuth
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status >= 400 && status < 500:
		e.Kind = KindClient
	default:
		e.Kind = KindServer
	}
	return e
}

// rejectsSession matches the 403 messages the backend sends for a stale or
// malformed bearer token.
func rejectsSession(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{"expired", "invalid", "token"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if len(payload.Error) == 0 {
		return ""
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	var plain string
	if err := json.Unmarshal(payload.Error, &plain); err == nil {
		return plain
	}
	return ""
}
