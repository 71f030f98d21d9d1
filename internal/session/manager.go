package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/groceryplus/admin-console/internal/domain"
	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/notify"
	"github.com/groceryplus/admin-console/internal/observability"
	"github.com/groceryplus/admin-console/internal/security"
)

// Authenticator is the backend surface the manager drives.
type Authenticator interface {
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResponse, error)
	ForgotPassword(ctx context.Context, req domain.ForgotPasswordRequest) (*domain.ForgotPasswordResponse, error)
}

type RecoveryGuard interface {
	Reset()
}

type CSRFMirror interface {
	MirrorCSRF(token string)
}

type Alerter interface {
	Show(alert notify.Alert) string
}

type Navigator interface {
	HardNavigate(ctx context.Context, route string)
}

// CachePurger drops cached data that must not survive a logout.
type CachePurger interface {
	PurgeVolatile(ctx context.Context)
}

type Options struct {
	LoginRoute        string
	ProfileClearDelay time.Duration
	CountryOpco       string
	Now               func() time.Time
}

type Manager struct {
	store   *Store
	api     Authenticator
	guard   RecoveryGuard
	mirror  CSRFMirror
	alerts  Alerter
	nav     Navigator
	cache   CachePurger
	logger  *slog.Logger
	opts    Options
	timerMu sync.Mutex
	timer   *time.Timer
	timerID uint64
}

func NewManager(store *Store, api Authenticator, guard RecoveryGuard, mirror CSRFMirror, alerts Alerter, nav Navigator, cache CachePurger, logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LoginRoute == "" {
		opts.LoginRoute = "/login"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:  store,
		api:    api,
		guard:  guard,
		mirror: mirror,
		alerts: alerts,
		nav:    nav,
		cache:  cache,
		logger: logger,
		opts:   opts,
	}
}

func (m *Manager) Store() *Store { return m.store }

func (m *Manager) LoginRoute() string { return m.opts.LoginRoute }

// Login reports whether a session was established. Rejected credentials and
// transport failures both yield false.
func (m *Manager) Login(ctx context.Context, username, password string) bool {
	username = strings.TrimSpace(username)
	resp, err := m.api.Login(ctx, domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		observability.RecordAuthLogin("error")
		m.logger.WarnContext(ctx, "login failed", "username", username, "kind", client.KindOf(err), "error", err)
		return false
	}
	if resp == nil || resp.Token == "" {
		observability.RecordAuthLogin("rejected")
		m.logger.InfoContext(ctx, "login response carried no token", "username", username)
		return false
	}
	if err := m.establish(ctx, resp); err != nil {
		observability.RecordAuthLogin("error")
		m.logger.ErrorContext(ctx, "persist session failed", "username", username, "error", err)
		return false
	}
	observability.RecordAuthLogin("success")
	return true
}

// Register creates an account. When the backend answers with a token the
// session is established exactly as after a login.
func (m *Manager) Register(ctx context.Context, req domain.RegisterRequest) bool {
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		m.logger.WarnContext(ctx, "registration failed", "username", req.Username, "kind", client.KindOf(err), "error", err)
		return false
	}
	if resp != nil && resp.Token != "" {
		if err := m.establish(ctx, resp); err != nil {
			m.logger.ErrorContext(ctx, "persist session after registration failed", "error", err)
			return false
		}
	}
	return true
}

func (m *Manager) ForgotPassword(ctx context.Context, email string) bool {
	resp, err := m.api.ForgotPassword(ctx, domain.ForgotPasswordRequest{Email: strings.TrimSpace(email)})
	if err != nil {
		m.logger.WarnContext(ctx, "forgot password failed", "kind", client.KindOf(err), "error", err)
		return false
	}
	return resp != nil && resp.Success
}

func (m *Manager) establish(ctx context.Context, resp *domain.LoginResponse) error {
	expiry, err := security.ParseExpiry(resp.ExpiresAt, resp.Token)
	if err != nil {
		m.logger.WarnContext(ctx, "ignoring malformed session expiry", "error", err)
		expiry, _ = security.ParseExpiry("", resp.Token)
	}
	profile := domain.NewProfile(resp.User)

	gen, err := m.store.commitLogin(ctx, resp.Token, resp.CSRFToken, profile, expiry)
	if err != nil {
		return err
	}
	md := m.store.Metadata()
	if md.CountryOpco == "" && m.opts.CountryOpco != "" {
		md.CountryOpco = m.opts.CountryOpco
	}
	if md.Language == "" {
		md.Language = profile.Language()
	}
	if err := m.store.SetMetadata(ctx, md); err != nil {
		m.logger.WarnContext(ctx, "persist session metadata failed", "error", err)
	}
	if m.mirror != nil && resp.CSRFToken != "" {
		m.mirror.MirrorCSRF(resp.CSRFToken)
	}
	m.scheduleExpiry(expiry, gen)
	if m.guard != nil {
		m.guard.Reset()
	}
	attrs := []any{"user", profile.DisplayName(), "token", security.Fingerprint(resp.Token)}
	if expiry != nil {
		attrs = append(attrs, "expires_at", expiry.Format(time.RFC3339))
	}
	m.logger.InfoContext(ctx, "session established", attrs...)
	return nil
}

// Logout always ends the local session. The backend call is best effort.
func (m *Manager) Logout(ctx context.Context) error {
	return m.logout(ctx, 0)
}

func (m *Manager) logout(ctx context.Context, ifGen uint64) error {
	if ifGen != 0 && m.store.generation() != ifGen {
		return nil
	}
	if m.store.hasCredentials() {
		if err := m.api.Logout(client.WithRetry(ctx)); err != nil {
			m.logger.WarnContext(ctx, "backend logout failed", "kind", client.KindOf(err), "error", err)
		}
	}
	gen, cleared, err := m.store.clearCredentials(ctx, true, ifGen)
	if !cleared {
		return nil
	}
	m.cancelExpiry()
	if m.mirror != nil {
		m.mirror.MirrorCSRF("")
	}
	if m.cache != nil {
		m.cache.PurgeVolatile(ctx)
	}
	time.AfterFunc(m.opts.ProfileClearDelay, func() {
		m.store.clearProfile(context.Background(), gen)
	})
	status := "success"
	if err != nil {
		status = "error"
		m.logger.ErrorContext(ctx, "clear persisted session failed", "error", err)
	}
	observability.RecordAuthLogout(status)
	return err
}

// Recover tears down a session the backend rejected: credentials are wiped,
// the user is told once and sent to the login route.
func (m *Manager) Recover(ctx context.Context, reason string) {
	if _, _, err := m.store.clearCredentials(ctx, false, 0); err != nil {
		m.logger.ErrorContext(ctx, "clear persisted session during recovery failed", "error", err)
	}
	m.cancelExpiry()
	if m.mirror != nil {
		m.mirror.MirrorCSRF("")
	}
	if m.alerts != nil {
		m.alerts.Show(notify.SessionExpired())
	}
	m.logger.WarnContext(ctx, "session recovered after backend rejection", "reason", reason, "route", m.opts.LoginRoute)
	if m.nav != nil {
		m.nav.HardNavigate(ctx, m.opts.LoginRoute)
	}
}

// Restore brings a persisted session back after a restart. An expired
// session is logged out; a live one gets its expiry timer back.
func (m *Manager) Restore(ctx context.Context) error {
	if err := m.store.Rehydrate(ctx); err != nil {
		m.logger.WarnContext(ctx, "rehydrate session failed", "error", err)
		return err
	}
	snap := m.store.Snapshot(m.opts.Now())
	if snap.SessionExpiry != nil && m.opts.Now().After(*snap.SessionExpiry) {
		m.logger.InfoContext(ctx, "persisted session expired, logging out")
		return m.Logout(ctx)
	}
	if snap.Token == "" {
		return nil
	}
	if snap.UserDetails != nil && !snap.IsAuthenticated {
		if err := m.store.SetLoggedIn(ctx, true); err != nil {
			return err
		}
	}
	if m.mirror != nil && snap.CSRFToken != "" {
		m.mirror.MirrorCSRF(snap.CSRFToken)
	}
	m.scheduleExpiry(snap.SessionExpiry, m.store.generation())
	return nil
}

// scheduleExpiry replaces any pending expiry timer. A superseded timer that
// already fired finds a newer timerID and does nothing.
func (m *Manager) scheduleExpiry(expiry *time.Time, gen uint64) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerID++
	if expiry == nil {
		return
	}
	id := m.timerID
	d := expiry.Sub(m.opts.Now())
	if d < 0 {
		d = 0
	}
	m.timer = time.AfterFunc(d, func() { m.onExpiry(id, gen) })
}

func (m *Manager) cancelExpiry() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerID++
}

func (m *Manager) onExpiry(id, gen uint64) {
	m.timerMu.Lock()
	current := id == m.timerID
	m.timerMu.Unlock()
	if !current {
		return
	}
	m.logger.Info("session expired, logging out")
	if err := m.logout(context.Background(), gen); err != nil {
		m.logger.Error("logout on expiry failed", "error", err)
	}
}

func (m *Manager) ExpiryScheduled() bool {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	return m.timer != nil
}
