package loadgen

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        uint64
	// Cookie is forwarded on every request so authenticated reads can be
	// exercised against a gateway that holds a session.
	Cookie string
}

type Result struct {
	TotalRequests int64
	Failures      int64
	StatusClasses map[string]int64
}

var profiles = map[string][]string{
	"session": {"/api/session", "/health/live"},
	"catalog": {"/api/products", "/api/categories", "/api/banners", "/api/products?page=2", "/api/categories?isActive=true"},
	"mixed":   {"/api/session", "/api/products", "/api/categories", "/api/banners", "/api/orders", "/api/dashboard", "/api/gallery"},
}

func normalizeProfile(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if _, ok := profiles[p]; !ok {
		return "mixed"
	}
	return p
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

// Run drives read traffic against a running gateway. A 401 from a resource
// route is the expected answer without a session and is not a failure.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		return Result{}, fmt.Errorf("base url is required")
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}
	paths := profiles[normalizeProfile(cfg.Profile)]
	base := strings.TrimRight(cfg.BaseURL, "/")

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		total, failures atomic.Int64
		mu              sync.Mutex
		classes         = map[string]int64{}
		wg              sync.WaitGroup
	)
	jobs := make(chan string)
	httpClient := &http.Client{Timeout: 10 * time.Second}
	for range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				status, err := hit(ctx, httpClient, base+path, cfg.Cookie)
				total.Add(1)
				class := classifyStatusClass(status)
				if err != nil || class == "5xx" {
					failures.Add(1)
				}
				mu.Lock()
				classes[class]++
				mu.Unlock()
			}
		}()
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			select {
			case jobs <- paths[rng.IntN(len(paths))]:
			case <-ctx.Done():
				break loop
			}
		}
	}
	close(jobs)
	wg.Wait()
	return Result{TotalRequests: total.Load(), Failures: failures.Load(), StatusClasses: classes}, nil
}

func hit(ctx context.Context, c *http.Client, url, cookie string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := c.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil
		}
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
