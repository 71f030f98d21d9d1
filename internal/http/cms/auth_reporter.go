package cms

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	MaxConsecutiveAuthErrors = 3
	authReportWindow         = 5 * time.Second
)

// AuthReporter watches CMS responses for rejected service credentials. It
// tells the operator once per window instead of on every failed call.
type AuthReporter struct {
	mu          sync.Mutex
	consecutive int
	reportedAt  time.Time
	reports     int
	logger      *slog.Logger
	now         func() time.Time
}

func NewAuthReporter(logger *slog.Logger) *AuthReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthReporter{logger: logger, now: time.Now}
}

// Observe records one CMS response status.
func (r *AuthReporter) Observe(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status != http.StatusUnauthorized {
		r.consecutive = 0
		return
	}
	r.consecutive++
	now := r.now()
	if r.consecutive <= MaxConsecutiveAuthErrors && (r.reportedAt.IsZero() || now.Sub(r.reportedAt) >= authReportWindow) {
		r.reportedAt = now
		r.reports++
		r.logger.Error("cms rejected the service token",
			"consecutive", r.consecutive,
			"max", MaxConsecutiveAuthErrors,
			"hint", "verify CMS_TOKEN has not expired",
		)
	}
	if r.consecutive > MaxConsecutiveAuthErrors {
		r.logger.Error("repeated cms authentication failures, requests may be blocked", "consecutive", r.consecutive)
	}
}

func (r *AuthReporter) Consecutive() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consecutive
}

// Reports is the number of operator diagnostics emitted so far.
func (r *AuthReporter) Reports() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports
}

// Wrap returns a RoundTripper that feeds every response status to r.
// Transport errors carry no status and leave the counter untouched.
func (r *AuthReporter) Wrap(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(req)
		if err == nil {
			r.Observe(resp.StatusCode)
		}
		return resp, err
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
