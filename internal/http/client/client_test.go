package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type staticCreds struct {
	token string
	csrf  string
}

func (s staticCreds) Token() string     { return s.token }
func (s staticCreds) CSRFToken() string { return s.csrf }

type countingRecoverer struct {
	calls   atomic.Int32
	reasons chan string
	delay   time.Duration
}

func (r *countingRecoverer) Recover(_ context.Context, reason string) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.reasons != nil {
		r.reasons <- reason
	}
}

func newClientForTest(t *testing.T, srv *httptest.Server, creds CredentialSource, icpt *Interceptor) *Client {
	t.Helper()
	c, err := New(Options{Name: "node", BaseURL: srv.URL + "/api", Timeout: 2 * time.Second, Credentials: creds, Interceptor: icpt})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestAttachCredentialsSetsHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://backend/api/products/list", nil)
	AttachCredentials(req, staticCreds{token: "tok", csrf: "csrf-1"}, nil, nil)

	if got := req.Header.Get(HeaderAuthorization); got != "Bearer tok" {
		t.Fatalf("authorization=%q", got)
	}
	if got := req.Header.Get(HeaderCSRF); got != "csrf-1" {
		t.Fatalf("csrf=%q", got)
	}
	if req.Header.Get(HeaderRequestID) == "" {
		t.Fatal("expected request id")
	}
}

func TestAttachCredentialsNeverSendsCSRFOnLogin(t *testing.T) {
	for _, path := range []string{"/api/auth/login", "/api/auth/login/"} {
		req := httptest.NewRequest(http.MethodPost, "http://backend"+path, nil)
		req.Header.Set(HeaderCSRF, "leftover")
		AttachCredentials(req, staticCreds{token: "tok", csrf: "csrf-1"}, nil, nil)
		if got := req.Header.Get(HeaderCSRF); got != "" {
			t.Fatalf("%s: login request must not carry csrf, got %q", path, got)
		}
	}
}

func TestAttachCredentialsFallsBackToCookie(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := newClientForTest(t, srv, staticCreds{token: "tok"}, nil)
	c.MirrorCSRF("from-cookie")

	req := httptest.NewRequest(http.MethodPost, srv.URL+"/api/products/list", nil)
	AttachCredentials(req, staticCreds{token: "tok"}, c.Jar(), nil)
	if got := req.Header.Get(HeaderCSRF); got != "from-cookie" {
		t.Fatalf("expected cookie csrf, got %q", got)
	}

	c.MirrorCSRF("")
	req = httptest.NewRequest(http.MethodPost, srv.URL+"/api/products/list", nil)
	AttachCredentials(req, staticCreds{token: "tok"}, c.Jar(), nil)
	if got := req.Header.Get(HeaderCSRF); got != "" {
		t.Fatalf("expired cookie must not be sent, got %q", got)
	}
}

func TestAttachCredentialsWithoutSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://backend/api/admin/dashboard", nil)
	AttachCredentials(req, staticCreds{}, nil, nil)
	if req.Header.Get(HeaderAuthorization) != "" || req.Header.Get(HeaderCSRF) != "" {
		t.Fatalf("unexpected credentials on anonymous request: %v", req.Header)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		cause  error
		want   Kind
		msg    string
	}{
		{name: "unauthorized", status: 401, body: `{"message":"jwt expired"}`, want: KindAuth, msg: "jwt expired"},
		{name: "csrf", status: 403, body: `{"message":"Invalid CSRF token"}`, want: KindCSRF, msg: "Invalid CSRF token"},
		{name: "forbidden", status: 403, body: `{"message":"admin only"}`, want: KindForbidden},
		{name: "forbidden stale token", status: 403, body: `{"message":"Invalid or expired token"}`, want: KindAuth},
		{name: "forbidden bad token", status: 403, body: `{"message":"Token missing"}`, want: KindAuth},
		{name: "nested message", status: 422, body: `{"error":{"message":"name required"}}`, want: KindClient, msg: "name required"},
		{name: "plain error", status: 404, body: `{"error":"missing"}`, want: KindClient, msg: "missing"},
		{name: "server", status: 500, body: `oops`, want: KindServer, msg: "Internal Server Error"},
		{name: "timeout", cause: context.DeadlineExceeded, want: KindTimeout},
		{name: "network", cause: errors.New("connection refused"), want: KindNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(http.MethodPost, "http://x/api", tc.status, []byte(tc.body), tc.cause)
			if got == nil {
				t.Fatal("expected error")
			}
			if got.Kind != tc.want {
				t.Fatalf("kind=%s want %s", got.Kind, tc.want)
			}
			if tc.msg != "" && got.Message != tc.msg {
				t.Fatalf("message=%q want %q", got.Message, tc.msg)
			}
			if got.HasResponse() != (tc.status > 0) {
				t.Fatalf("HasResponse=%v for status %d", got.HasResponse(), tc.status)
			}
		})
	}
	if Classify(http.MethodGet, "http://x", 204, nil, nil) != nil {
		t.Fatal("2xx must classify as success")
	}
}

func TestClientDecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products/list" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing json content type")
		}
		_, _ = io.WriteString(w, `{"status":"ok","result":{"n":3}}`)
	}))
	defer srv.Close()

	c := newClientForTest(t, srv, staticCreds{token: "tok"}, nil)
	var out struct {
		Result struct {
			N int `json:"n"`
		} `json:"result"`
	}
	if err := c.PostJSON(context.Background(), "/products/list", map[string]int{"page": 1}, &out); err != nil {
		t.Fatalf("post: %v", err)
	}
	if out.Result.N != 3 {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestConcurrentAuthFailuresRecoverOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"token expired"}`)
	}))
	defer srv.Close()

	rec := &countingRecoverer{delay: 20 * time.Millisecond}
	icpt := NewInterceptor(nil)
	icpt.SetRecoverer(rec)
	c := newClientForTest(t, srv, staticCreds{token: "tok"}, icpt)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.PostJSON(context.Background(), "/products/list", nil, nil)
		}(i)
	}
	wg.Wait()

	if got := rec.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one recovery, got %d", got)
	}
	for i, err := range errs {
		if !IsAuthFailure(err) || StatusCode(err) != http.StatusUnauthorized {
			t.Fatalf("request %d: expected 401 auth error, got %v", i, err)
		}
	}

	if err := c.PostJSON(context.Background(), "/products/list", nil, nil); !IsAuthFailure(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if rec.calls.Load() != 1 {
		t.Fatal("window must stay closed until reset")
	}
	icpt.Reset()
	_ = c.PostJSON(context.Background(), "/products/list", nil, nil)
	if rec.calls.Load() != 2 {
		t.Fatalf("expected recovery after reset, got %d", rec.calls.Load())
	}
}

func TestCSRFRejectionRecovers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"CSRF token mismatch"}`)
	}))
	defer srv.Close()

	rec := &countingRecoverer{reasons: make(chan string, 1)}
	icpt := NewInterceptor(nil)
	icpt.SetRecoverer(rec)
	c := newClientForTest(t, srv, staticCreds{token: "tok", csrf: "c"}, icpt)

	err := c.PostJSON(context.Background(), "/categories/update", map[string]string{"name": "x"}, nil)
	if KindOf(err) != KindCSRF {
		t.Fatalf("expected csrf kind, got %v", err)
	}
	if reason := <-rec.reasons; reason != string(KindCSRF) {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestForbiddenStaleTokenRecovers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"Invalid or expired token"}`)
	}))
	defer srv.Close()

	rec := &countingRecoverer{reasons: make(chan string, 1)}
	icpt := NewInterceptor(nil)
	icpt.SetRecoverer(rec)
	c := newClientForTest(t, srv, staticCreds{token: "tok", csrf: "c"}, icpt)

	err := c.PostJSON(context.Background(), "/orders/list", map[string]int{"page": 1}, nil)
	if !IsAuthFailure(err) || StatusCode(err) != http.StatusForbidden {
		t.Fatalf("expected auth failure carrying 403, got %v", err)
	}
	if IsClientFailure(err) {
		t.Fatal("a session rejection must not be negatively cacheable")
	}
	if reason := <-rec.reasons; reason != string(KindAuth) {
		t.Fatalf("unexpected reason %q", reason)
	}
	if rec.calls.Load() != 1 {
		t.Fatalf("expected one recovery, got %d", rec.calls.Load())
	}
}

func TestNonAuthFailuresPassThrough(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = io.WriteString(w, `{"message":"admin only"}`)
	}))
	defer srv.Close()

	rec := &countingRecoverer{}
	icpt := NewInterceptor(nil)
	icpt.SetRecoverer(rec)
	c := newClientForTest(t, srv, staticCreds{token: "tok"}, icpt)

	for _, code := range []int{403, 404, 500} {
		status.Store(int32(code))
		err := c.GetJSON(context.Background(), "/admin/dashboard", nil)
		if StatusCode(err) != code {
			t.Fatalf("expected status %d, got %v", code, err)
		}
	}
	if rec.calls.Load() != 0 {
		t.Fatalf("non-auth failures must not recover, got %d", rec.calls.Load())
	}
}

func TestNetworkFailureDoesNotRecover(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	rec := &countingRecoverer{}
	icpt := NewInterceptor(nil)
	icpt.SetRecoverer(rec)
	c, err := New(Options{BaseURL: addr + "/api", Timeout: time.Second, Credentials: staticCreds{token: "tok"}, Interceptor: icpt})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = c.GetJSON(context.Background(), "/admin/dashboard", nil)
	if !IsNetworkFailure(err) {
		t.Fatalf("expected network failure, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.HasResponse() {
		t.Fatalf("network failure must carry no response: %+v", apiErr)
	}
	if rec.calls.Load() != 0 {
		t.Fatal("network failures must not recover")
	}
}

func TestTimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = c.GetJSON(context.Background(), "/slow", nil)
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestWithRetrySkipsRecovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	rec := &countingRecoverer{}
	icpt := NewInterceptor(nil)
	icpt.SetRecoverer(rec)
	c := newClientForTest(t, srv, staticCreds{token: "tok"}, icpt)

	err := c.PostJSON(WithRetry(context.Background()), "/auth/logout", nil, nil)
	if !IsAuthFailure(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if rec.calls.Load() != 0 || icpt.InFlight() {
		t.Fatal("marked requests must not start recovery")
	}
}

func TestPostMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("folder") != "banners" {
			t.Errorf("folder=%q", r.FormValue("folder"))
		}
		files := r.MultipartForm.File["images"]
		if len(files) != 2 {
			t.Errorf("expected 2 files, got %d", len(files))
		}
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := newClientForTest(t, srv, staticCreds{token: "tok"}, nil)
	err := c.PostMultipart(context.Background(), "/uploads/images", map[string]string{"folder": "banners"}, []File{
		{Field: "images", Name: "a.png", ContentType: "image/png", Content: strings.NewReader("a")},
		{Field: "images", Name: "b.png", Content: strings.NewReader("b")},
	}, nil)
	if err != nil {
		t.Fatalf("multipart: %v", err)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3000":      "http://localhost:3000/api",
		"http://localhost:3000/":     "http://localhost:3000/api",
		"http://localhost:3000/api":  "http://localhost:3000/api",
		"http://localhost:3000/api/": "http://localhost:3000/api",
	}
	for in, want := range cases {
		if got := NormalizeBaseURL(in, "/api"); got != want {
			t.Fatalf("NormalizeBaseURL(%q)=%q want %q", in, got, want)
		}
	}
}

func FuzzIsLoginEndpoint(f *testing.F) {
	f.Add("/api/auth/login")
	f.Add("/api/auth/login/")
	f.Add("/api/auth/logout")
	f.Add("")
	f.Fuzz(func(t *testing.T, path string) {
		got := IsLoginEndpoint(path)
		if got && !strings.Contains(path, "/auth/login") {
			t.Fatalf("path %q classified as login", path)
		}
		if got != IsLoginEndpoint(path) {
			t.Fatal("IsLoginEndpoint must be deterministic")
		}
	})
}
