package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/groceryplus/admin-console/internal/app"
	"github.com/groceryplus/admin-console/internal/config"
	"github.com/groceryplus/admin-console/internal/di"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

// backend imitates the primary admin API.
type backend struct {
	reject    atomic.Bool
	listCalls atomic.Int32
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/api/auth/login" {
		_, _ = w.Write([]byte(`{"token":"node-token-1","csrfToken":"csrf-1","user":{"name":"Asha","role":"admin"}}`))
		return
	}
	if b.reject.Load() || r.Header.Get("Authorization") != "Bearer node-token-1" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
		return
	}
	switch r.URL.Path {
	case "/api/products/list":
		b.listCalls.Add(1)
		_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"Rice"}],"meta":{"pagination":{"page":1,"pageSize":10,"pageCount":1,"total":1}}}`))
	case "/api/products/create":
		_, _ = w.Write([]byte(`{"data":{"id":2,"name":"Lentils"}}`))
	case "/api/admin/dashboard":
		_, _ = w.Write([]byte(`{"status":"success","result":{"orders_count":3}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testConfig(t *testing.T, nodeURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                      "test",
		NodeURL:                  nodeURL,
		CMSURL:                   "http://localhost:3005/api",
		CMSToken:                 strings.Repeat("c", 40),
		AppOpco:                  "INDIA",
		NodeTimeout:              2 * time.Second,
		CMSTimeout:               2 * time.Second,
		LoginRoute:               "/login",
		StorageBackend:           "bolt",
		StoragePath:              filepath.Join(t.TempDir(), "console.db"),
		StorageNamespace:         "groceryplus-admin",
		CachePersistedFamilies:   []string{"categories", "products", "banners"},
		GatewayAddr:              "127.0.0.1:0",
		GatewayLoginRateLimitRPM: 100,
		LogLevel:                 "error",
	}
}

type gateway struct {
	app    *app.App
	url    string
	client *http.Client
	stop   func()
}

func startGateway(t *testing.T, cfg *config.Config) *gateway {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	a, cleanup, err := di.InitializeApp(ctx, cfg)
	if err != nil {
		cancel()
		t.Fatalf("initialize app: %v", err)
	}
	if err := a.Console.Start(ctx); err != nil {
		cancel()
		cleanup()
		t.Fatalf("start console: %v", err)
	}
	srv := httptest.NewServer(a.Server.Handler)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			srv.Close()
			cancel()
			_ = a.Console.Close(context.Background())
			cleanup()
		})
	}
	t.Cleanup(stop)
	return &gateway{app: a, url: srv.URL, stop: stop, client: &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}}
}

func (g *gateway) do(t *testing.T, method, path string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, g.url+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp, env
}

func (g *gateway) login(t *testing.T) {
	t.Helper()
	resp, env := g.do(t, http.MethodPost, "/api/session/login", map[string]string{"username": "asha", "password": "secret"})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login failed: status=%d code=%s", resp.StatusCode, env.Error.Code)
	}
	if strings.Contains(string(env.Data), "node-token-1") {
		t.Fatal("session view must not expose the bearer token")
	}
}

func TestMutationInvalidatesCachedList(t *testing.T) {
	be := &backend{}
	upstream := httptest.NewServer(be)
	t.Cleanup(upstream.Close)
	g := startGateway(t, testConfig(t, upstream.URL))
	g.login(t)

	for i := 0; i < 2; i++ {
		if resp, _ := g.do(t, http.MethodGet, "/api/products", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("list products: status=%d", resp.StatusCode)
		}
	}
	if got := be.listCalls.Load(); got != 1 {
		t.Fatalf("expected a cached second read, upstream saw %d list calls", got)
	}

	resp, _ := g.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Lentils", "basePrice": 90})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create product: status=%d", resp.StatusCode)
	}
	if resp, _ := g.do(t, http.MethodGet, "/api/products", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("list products after create: status=%d", resp.StatusCode)
	}
	if got := be.listCalls.Load(); got != 2 {
		t.Fatalf("expected refetch after create, upstream saw %d list calls", got)
	}
}

func TestRejectedSessionRecoversOnce(t *testing.T) {
	be := &backend{}
	upstream := httptest.NewServer(be)
	t.Cleanup(upstream.Close)
	g := startGateway(t, testConfig(t, upstream.URL))
	g.login(t)

	be.reject.Store(true)
	resp, env := g.do(t, http.MethodGet, "/api/dashboard", nil)
	if resp.StatusCode != http.StatusUnauthorized || env.Error.Code != "SESSION_EXPIRED" {
		t.Fatalf("expected SESSION_EXPIRED, got status=%d code=%s", resp.StatusCode, env.Error.Code)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("expected login location, got %q", loc)
	}

	// the session is gone, so later requests stop at the gateway
	if resp, _ := g.do(t, http.MethodGet, "/api/dashboard", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized after recovery, got %d", resp.StatusCode)
	}
	_, env = g.do(t, http.MethodGet, "/api/session", nil)
	var view struct {
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode session view: %v", err)
	}
	if view.IsAuthenticated {
		t.Fatal("expected session cleared after recovery")
	}
	if n := len(g.app.Console.Alerts.List()); n != 1 {
		t.Fatalf("expected exactly one session expired alert, got %d", n)
	}

	// a fresh login reopens the recovery window
	be.reject.Store(false)
	g.login(t)
	if g.app.Console.Interceptor.InFlight() {
		t.Fatal("expected login to reset the recovery window")
	}
	if resp, _ := g.do(t, http.MethodGet, "/api/dashboard", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected dashboard after re-login, got %d", resp.StatusCode)
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	be := &backend{}
	upstream := httptest.NewServer(be)
	t.Cleanup(upstream.Close)
	cfg := testConfig(t, upstream.URL)

	first := startGateway(t, cfg)
	first.login(t)
	first.stop()

	second := startGateway(t, cfg)
	snap := second.app.Console.Session.Store().Snapshot(time.Now())
	if !snap.IsAuthenticated || snap.UserDetails.DisplayName() != "Asha" {
		t.Fatalf("expected restored session, got %+v", snap)
	}
	if resp, _ := second.do(t, http.MethodGet, "/api/dashboard", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected restored credentials to reach the backend, got %d", resp.StatusCode)
	}
}
