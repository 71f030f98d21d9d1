package loadgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClassifyStatusClass(t *testing.T) {
	cases := map[int]string{
		200: "2xx",
		302: "3xx",
		404: "4xx",
		500: "5xx",
		100: "other",
	}
	for status, want := range cases {
		if got := classifyStatusClass(status); got != want {
			t.Fatalf("classifyStatusClass(%d)=%q want %q", status, got, want)
		}
	}
}

func TestNormalizeProfile(t *testing.T) {
	if got := normalizeProfile(""); got != "mixed" {
		t.Fatalf("normalizeProfile empty=%q want mixed", got)
	}
	if got := normalizeProfile("  CATALOG  "); got != "catalog" {
		t.Fatalf("normalizeProfile catalog=%q want catalog", got)
	}
	if got := normalizeProfile("unknown"); got != "mixed" {
		t.Fatalf("normalizeProfile unknown=%q want mixed", got)
	}
}

func TestRunCountsRequests(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/api/session" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	res, err := Run(context.Background(), Config{BaseURL: srv.URL, Profile: "session", Duration: 300 * time.Millisecond, RPS: 50, Concurrency: 2, Seed: 7})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TotalRequests == 0 || hits.Load() > res.TotalRequests {
		t.Fatalf("unexpected counts: total=%d server hits=%d", res.TotalRequests, hits.Load())
	}
	if res.Failures != 0 {
		t.Fatalf("expected no failures, got %d", res.Failures)
	}
}

func TestRunRequiresBaseURL(t *testing.T) {
	if _, err := Run(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without base url")
	}
}
