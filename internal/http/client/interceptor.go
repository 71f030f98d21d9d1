package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/groceryplus/admin-console/internal/observability"
)

// Recoverer tears down a session the backend has rejected.
type Recoverer interface {
	Recover(ctx context.Context, reason string)
}

type retryKey struct{}

// WithRetry marks requests whose auth failures must not trigger recovery,
// such as a retried request or the logout call itself.
func WithRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryKey{}, true)
}

func isRetry(ctx context.Context) bool {
	v, _ := ctx.Value(retryKey{}).(bool)
	return v
}

// Interceptor runs session recovery at most once per failure window. The
// window stays closed until Reset is called after a fresh login.
type Interceptor struct {
	inFlight  atomic.Bool
	mu        sync.RWMutex
	recoverer Recoverer
	logger    *slog.Logger
}

func NewInterceptor(logger *slog.Logger) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{logger: logger}
}

func (i *Interceptor) SetRecoverer(r Recoverer) {
	i.mu.Lock()
	i.recoverer = r
	i.mu.Unlock()
}

// Intercept always returns err unchanged. Auth failures additionally start a
// recovery unless one already ran in this window.
func (i *Interceptor) Intercept(ctx context.Context, err *APIError) error {
	if err == nil {
		return nil
	}
	if !err.IsAuthFailure() || isRetry(ctx) {
		return err
	}
	reason := string(err.Kind)
	if !i.inFlight.CompareAndSwap(false, true) {
		observability.RecordSessionRecovery(ctx, reason, "suppressed")
		return err
	}
	observability.RecordSessionRecovery(ctx, reason, "started")
	i.logger.WarnContext(ctx, "session rejected by backend, recovering",
		"method", err.Method,
		"url", err.URL,
		"status", err.Status,
		"kind", err.Kind,
	)

	i.mu.RLock()
	r := i.recoverer
	i.mu.RUnlock()
	if r != nil {
		r.Recover(context.WithoutCancel(ctx), reason)
	}
	return err
}

func (i *Interceptor) Reset() {
	i.inFlight.Store(false)
}

func (i *Interceptor) InFlight() bool {
	return i.inFlight.Load()
}
