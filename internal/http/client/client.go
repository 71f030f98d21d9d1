package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"

	"github.com/groceryplus/admin-console/internal/observability"
)

const maxErrorBody = 64 << 10

type Options struct {
	// Name labels logs and metrics, e.g. "node" or "cms".
	Name        string
	BaseURL     string
	Timeout     time.Duration
	Credentials CredentialSource
	Interceptor *Interceptor
	// Transport is wrapped with otelhttp. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Jar       http.CookieJar
	Logger    *slog.Logger
}

// Client sends requests through a fixed pipeline: attach credentials, send,
// classify, intercept.
type Client struct {
	name        string
	base        *url.URL
	http        *http.Client
	jar         http.CookieJar
	creds       CredentialSource
	interceptor *Interceptor
	logger      *slog.Logger
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	jar := opts.Jar
	if jar == nil {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = base.Host
	}
	return &Client{
		name: name,
		base: base,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Jar:       jar,
			Transport: otelhttp.NewTransport(transport),
		},
		jar:         jar,
		creds:       opts.Credentials,
		interceptor: opts.Interceptor,
		logger:      logger.With("client", name),
	}, nil
}

// NormalizeBaseURL appends suffix to raw unless it already ends with it.
func NormalizeBaseURL(raw, suffix string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if suffix == "" || strings.HasSuffix(raw, suffix) {
		return raw
	}
	return raw + suffix
}

func (c *Client) Name() string { return c.name }

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) Jar() http.CookieJar { return c.jar }

// MirrorCSRF stores the anti-forgery token as the XSRF-TOKEN cookie for the
// backend origin. An empty token expires the cookie.
func (c *Client) MirrorCSRF(token string) {
	cookie := &http.Cookie{Name: CSRFCookieName, Value: token, Path: "/"}
	if token == "" {
		cookie.MaxAge = -1
	}
	c.jar.SetCookies(c.base, []*http.Cookie{cookie})
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{Kind: KindSetup, Method: method, URL: c.resolve(path), Message: "encode request body", Cause: err}
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return nil, &APIError{Kind: KindSetup, Method: method, URL: c.resolve(path), Message: "build request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends a JSON request and decodes a successful JSON response into out.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return c.fail(ctx, err.(*APIError))
	}
	return c.DoRequest(req, out)
}

func (c *Client) DoRequest(req *http.Request, out any) error {
	ctx := req.Context()
	req = req.Clone(ctx)
	AttachCredentials(req, c.creds, c.jar, c.logger)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(ctx, Classify(req.Method, req.URL.String(), 0, nil, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.fail(ctx, Classify(req.Method, req.URL.String(), resp.StatusCode, body, nil))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) fail(ctx context.Context, apiErr *APIError) error {
	observability.RecordClientFailure(ctx, c.name, string(apiErr.Kind))
	c.logger.WarnContext(ctx, "request failed",
		"method", apiErr.Method,
		"url", apiErr.URL,
		"status", apiErr.Status,
		"kind", apiErr.Kind,
		"message", apiErr.Message,
	)
	if c.interceptor == nil {
		return apiErr
	}
	return c.interceptor.Intercept(ctx, apiErr)
}

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) PutJSON(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// File is one part of a multipart upload.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []File, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return c.fail(ctx, &APIError{Kind: KindSetup, Method: http.MethodPost, URL: c.resolve(path), Message: "write form field", Cause: err})
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, f.Content)
		}
		if err != nil {
			return c.fail(ctx, &APIError{Kind: KindSetup, Method: http.MethodPost, URL: c.resolve(path), Message: "write form file", Cause: err})
		}
	}
	if err := w.Close(); err != nil {
		return c.fail(ctx, &APIError{Kind: KindSetup, Method: http.MethodPost, URL: c.resolve(path), Message: "close form", Cause: err})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path), &buf)
	if err != nil {
		return c.fail(ctx, &APIError{Kind: KindSetup, Method: http.MethodPost, URL: c.resolve(path), Message: "build request", Cause: err})
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.DoRequest(req, out)
}
