package cms

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/groceryplus/admin-console/internal/config"
	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/security"
)

const (
	ClientName     = "cms"
	DefaultBaseURL = "http://localhost:3005/api"
	minTokenLength = 30
)

var ErrInvalidToken = errors.New("cms token is missing or too short")

// CheckToken reports whether token looks usable. Only its fingerprint is
// ever logged.
func CheckToken(token string, logger *slog.Logger) error {
	token = strings.TrimSpace(token)
	if len(token) < minTokenLength {
		if logger != nil {
			logger.Error("cms token rejected", "length", len(token), "fingerprint", security.Fingerprint(token))
		}
		return ErrInvalidToken
	}
	if logger != nil {
		logger.Info("cms token loaded", "length", len(token), "fingerprint", security.Fingerprint(token))
	}
	return nil
}

// New builds the CMS client. The bearer is a service credential attached by
// an oauth2 transport, so CMS auth failures are reported to the operator and
// never tear down the admin session.
func New(cfg *config.Config, logger *slog.Logger) (*client.Client, *AuthReporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cms")
	if err := CheckToken(cfg.CMSToken, logger); err != nil {
		return nil, nil, err
	}
	base := cfg.CMSURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.CMSTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	reporter := NewAuthReporter(logger)
	transport := reporter.Wrap(&oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.CMSToken, TokenType: "Bearer"}),
		Base:   http.DefaultTransport,
	})
	c, err := client.New(client.Options{
		Name:      ClientName,
		BaseURL:   base,
		Timeout:   timeout,
		Transport: transport,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("cms client initialized", "base_url", c.BaseURL(), "timeout", timeout)
	return c, reporter, nil
}
