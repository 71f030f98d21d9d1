package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/groceryplus/admin-console/internal/http/response"
	"github.com/groceryplus/admin-console/internal/observability"
)

// maxPeekBytes bounds how much of a credential body the limiter reads to find
// the account name.
const maxPeekBytes = 4 << 10

// attemptLog is a sliding window of attempt times per key.
type attemptLog struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	nextGC time.Time
	now    func() time.Time
}

func newAttemptLog(limit int, window time.Duration) *attemptLog {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLog{hits: make(map[string][]time.Time), limit: limit, window: window, now: time.Now}
}

// take records one attempt against every key, or none when any key is
// exhausted. It returns the wait until the earliest exhausted key frees up
// and the smallest remaining budget.
func (l *attemptLog) take(keys ...string) (wait time.Duration, remaining int) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextGC) {
		for k, hits := range l.hits {
			if len(hits) == 0 || now.Sub(hits[len(hits)-1]) > l.window {
				delete(l.hits, k)
			}
		}
		l.nextGC = now.Add(l.window)
	}

	remaining = l.limit
	for _, k := range keys {
		hits := l.prune(k, now)
		if len(hits) >= l.limit {
			wait = max(wait, hits[0].Add(l.window).Sub(now))
		}
		remaining = min(remaining, l.limit-len(hits))
	}
	if wait > 0 {
		return wait, 0
	}
	for _, k := range keys {
		l.hits[k] = append(l.hits[k], now)
	}
	return 0, remaining - 1
}

func (l *attemptLog) prune(key string, now time.Time) []time.Time {
	hits := l.hits[key]
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]
	l.hits[key] = hits
	return hits
}

// RateLimiter throttles credential endpoints. Each attempt is charged to the
// client address and, when the body names one, to the account, so neither a
// single client nor a distributed guess against one account gets more than
// limit tries per window.
type RateLimiter struct {
	scope string
	log   *attemptLog
}

func NewRateLimiter(scope string, limit int, window time.Duration) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	return &RateLimiter{scope: scope, log: newAttemptLog(limit, window)}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keys := []string{"ip:" + clientIP(r)}
			if account := peekAccount(r); account != "" {
				keys = append(keys, "account:"+account)
			}
			wait, remaining := rl.log.take(keys...)
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.log.limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
			if wait > 0 {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				h.Set("Retry-After", retryAfterSeconds(wait))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, try again later", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// peekAccount reads the username or email from a JSON body and puts the body
// back for the handler.
func peekAccount(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil {
		return ""
	}
	var creds struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if json.Unmarshal(head, &creds) != nil {
		return ""
	}
	if v := strings.ToLower(strings.TrimSpace(creds.Username)); v != "" {
		return v
	}
	return strings.ToLower(strings.TrimSpace(creds.Email))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	return strconv.Itoa(max(seconds, 1))
}
