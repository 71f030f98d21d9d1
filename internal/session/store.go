package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/groceryplus/admin-console/internal/domain"
	"github.com/groceryplus/admin-console/internal/repository"
)

const (
	KeyToken         = "token"
	KeyUser          = "user"
	KeyCSRFToken     = "csrfToken"
	KeySessionExpiry = "sessionExpiry"
	KeyAuthStorage   = "auth-storage"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrNoToken          = errors.New("cannot mark session authenticated without a token")
)

// authStorage is the persisted shape of the non-credential session fields.
type authStorage struct {
	IsAuthenticated bool            `json:"isAuthenticated"`
	UserDetails     domain.Profile  `json:"userDetails,omitempty"`
	Metadata        domain.Metadata `json:"metadata"`
}

// Store is the single source of truth for the signed-in principal. Every
// change is written through to the durable KVStore before it becomes
// visible to readers.
type Store struct {
	mu     sync.RWMutex
	kv     repository.KVStore
	logger *slog.Logger
	state  domain.Session
	gen    uint64
	now    func() time.Time
}

type StoreOption func(*Store)

// WithClock sets the clock the credential getters check expiry against.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(kv repository.KVStore, logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{kv: kv, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rehydrate loads persisted state. Missing or corrupt entries fall back to an
// unauthenticated session.
func (s *Store) Rehydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := domain.Session{}
	token, _, err := s.kv.Get(ctx, KeyToken)
	if err != nil {
		s.state = next
		return fmt.Errorf("rehydrate token: %w", err)
	}
	next.Token = string(token)

	if raw, found, err := s.kv.Get(ctx, KeyCSRFToken); err == nil && found {
		next.CSRFToken = string(raw)
	}
	if raw, found, err := s.kv.Get(ctx, KeySessionExpiry); err == nil && found {
		t, perr := time.Parse(time.RFC3339Nano, string(raw))
		if perr != nil {
			s.logger.WarnContext(ctx, "ignoring corrupt persisted session expiry", "error", perr)
		} else {
			next.SessionExpiry = &t
		}
	}

	blob := authStorage{}
	if raw, found, err := s.kv.Get(ctx, KeyAuthStorage); err == nil && found {
		if err := json.Unmarshal(raw, &blob); err != nil {
			s.logger.WarnContext(ctx, "ignoring corrupt persisted auth state", "error", err)
			blob = authStorage{}
		}
	}
	next.Metadata = blob.Metadata
	next.UserDetails = blob.UserDetails
	if raw, found, err := s.kv.Get(ctx, KeyUser); err == nil && found {
		var user domain.Profile
		if err := json.Unmarshal(raw, &user); err != nil {
			s.logger.WarnContext(ctx, "ignoring corrupt persisted user", "error", err)
		} else {
			next.UserDetails = user
		}
	}
	next.IsAuthenticated = blob.IsAuthenticated && next.Token != ""

	s.state = next
	s.gen++
	return nil
}

// Snapshot returns a consistent copy of the session. An expired session is
// reported as unauthenticated.
func (s *Store) Snapshot(now time.Time) domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.UserDetails = s.state.UserDetails.Clone()
	if out.SessionExpiry != nil {
		exp := *out.SessionExpiry
		out.SessionExpiry = &exp
	}
	if out.ExpiredAt(now) {
		out.IsAuthenticated = false
	}
	return out
}

// Token returns the bearer token, or "" once the session has expired.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.ExpiredAt(s.now()) {
		return ""
	}
	return s.state.Token
}

func (s *Store) CSRFToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.ExpiredAt(s.now()) {
		return ""
	}
	return s.state.CSRFToken
}

// hasCredentials reports a stored token whether or not it has expired.
func (s *Store) hasCredentials() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token != ""
}

func (s *Store) IsAuthenticated(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated && !s.state.ExpiredAt(now)
}

func (s *Store) UserDetails() domain.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UserDetails.Clone()
}

func (s *Store) Metadata() domain.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Metadata
}

func (s *Store) SetLoggedIn(ctx context.Context, loggedIn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loggedIn && s.state.Token == "" {
		return ErrNoToken
	}
	next := s.state
	next.IsAuthenticated = loggedIn
	if err := s.persistBlobLocked(ctx, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) SetUserDetails(ctx context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	next.UserDetails = profile.Clone()
	if err := s.persistBlobLocked(ctx, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) SetMetadata(ctx context.Context, md domain.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	next.Metadata = md
	if err := s.persistBlobLocked(ctx, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) persistBlobLocked(ctx context.Context, next domain.Session) error {
	raw, err := encodeBlob(next)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyAuthStorage, raw); err != nil {
		return fmt.Errorf("persist auth state: %w", err)
	}
	return nil
}

// commitLogin writes every credential durably and only then marks the session
// authenticated. Readers never observe a token without its profile.
func (s *Store) commitLogin(ctx context.Context, token, csrf string, profile domain.Profile, expiry *time.Time) (uint64, error) {
	if token == "" {
		return 0, ErrNoToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	next.Token = token
	next.CSRFToken = csrf
	next.UserDetails = profile.Clone()
	next.SessionExpiry = expiry
	next.IsAuthenticated = true

	user, err := json.Marshal(next.UserDetails)
	if err != nil {
		return 0, fmt.Errorf("encode user: %w", err)
	}
	blob, err := encodeBlob(next)
	if err != nil {
		return 0, err
	}
	entries := map[string][]byte{
		KeyToken:       []byte(token),
		KeyUser:        user,
		KeyAuthStorage: blob,
	}
	var stale []string
	if csrf != "" {
		entries[KeyCSRFToken] = []byte(csrf)
	} else {
		stale = append(stale, KeyCSRFToken)
	}
	if expiry != nil {
		entries[KeySessionExpiry] = []byte(expiry.UTC().Format(time.RFC3339Nano))
	} else {
		stale = append(stale, KeySessionExpiry)
	}
	if len(stale) > 0 {
		if err := s.kv.Delete(ctx, stale...); err != nil {
			return 0, fmt.Errorf("clear stale credentials: %w", err)
		}
	}
	if err := s.kv.SetMany(ctx, entries); err != nil {
		return 0, fmt.Errorf("persist credentials: %w", err)
	}
	s.state = next
	s.gen++
	return s.gen, nil
}

// clearCredentials drops the durable credentials and marks the session
// unauthenticated. With keepProfile the in-memory profile survives until
// clearProfile runs. A non-zero ifGen makes the call a no-op once a newer
// session has been committed.
func (s *Store) clearCredentials(ctx context.Context, keepProfile bool, ifGen uint64) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ifGen != 0 && ifGen != s.gen {
		return s.gen, false, nil
	}

	next := s.state
	next.Token = ""
	next.CSRFToken = ""
	next.SessionExpiry = nil
	next.IsAuthenticated = false
	if !keepProfile {
		next.UserDetails = nil
	}

	// the in-memory state is cleared even if the durable delete fails
	var errs []error
	if err := s.kv.Delete(ctx, KeyToken, KeyUser, KeyCSRFToken, KeySessionExpiry); err != nil {
		errs = append(errs, fmt.Errorf("clear credentials: %w", err))
	}
	if err := s.persistBlobLocked(ctx, next); err != nil {
		errs = append(errs, err)
	}
	s.state = next
	s.gen++
	return s.gen, true, errors.Join(errs...)
}

// clearProfile drops the profile left behind by logout unless a new session
// has been committed since.
func (s *Store) clearProfile(ctx context.Context, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.state.IsAuthenticated {
		return
	}
	next := s.state
	next.UserDetails = nil
	if err := s.persistBlobLocked(ctx, next); err != nil {
		s.logger.WarnContext(ctx, "persist cleared profile failed", "error", err)
	}
	s.state = next
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func encodeBlob(sess domain.Session) ([]byte, error) {
	raw, err := json.Marshal(authStorage{
		IsAuthenticated: sess.IsAuthenticated,
		UserDetails:     sess.UserDetails,
		Metadata:        sess.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encode auth state: %w", err)
	}
	return raw, nil
}
