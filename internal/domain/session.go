package domain

import "time"

const (
	DefaultCurrencyCode   = "INR"
	DefaultCurrencySymbol = "₹"
	DefaultLanguage       = "en"
)

// Session is a point-in-time copy of the authenticated principal.
type Session struct {
	IsAuthenticated bool       `json:"isAuthenticated"`
	UserDetails     Profile    `json:"userDetails,omitempty"`
	Token           string     `json:"-"`
	CSRFToken       string     `json:"-"`
	SessionExpiry   *time.Time `json:"sessionExpiry,omitempty"`
	Metadata        Metadata   `json:"metadata"`
}

// ExpiredAt reports whether the session expiry has passed at now.
func (s Session) ExpiredAt(now time.Time) bool {
	return s.SessionExpiry != nil && now.After(*s.SessionExpiry)
}

// ValidAt reports whether the session may be used at now.
func (s Session) ValidAt(now time.Time) bool {
	return s.IsAuthenticated && s.Token != "" && !s.ExpiredAt(now)
}

// Profile holds user-facing attributes returned by the backend on login.
// Unknown keys are preserved so the profile round-trips unchanged.
type Profile map[string]any

// NewProfile merges user over the currency and locale defaults. Keys present
// in user win.
func NewProfile(user map[string]any) Profile {
	p := Profile{
		"currencyCode":   DefaultCurrencyCode,
		"currencySymbol": DefaultCurrencySymbol,
		"language":       DefaultLanguage,
	}
	for k, v := range user {
		p[k] = v
	}
	return p
}

func (p Profile) Clone() Profile {
	if p == nil {
		return nil
	}
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Profile) String(key string) string {
	if p == nil {
		return ""
	}
	v, _ := p[key].(string)
	return v
}

func (p Profile) CurrencyCode() string   { return p.String("currencyCode") }
func (p Profile) CurrencySymbol() string { return p.String("currencySymbol") }
func (p Profile) Language() string       { return p.String("language") }
func (p Profile) Username() string       { return p.String("username") }
func (p Profile) Email() string          { return p.String("email") }
func (p Profile) Role() string           { return p.String("role") }

// DisplayName returns the best human readable identifier in the profile.
func (p Profile) DisplayName() string {
	for _, key := range []string{"name", "username", "email", "user_id"} {
		if v := p.String(key); v != "" {
			return v
		}
	}
	return "unknown"
}

// Metadata is request-scoped context persisted alongside the session.
type Metadata struct {
	RequestID     string `json:"requestId,omitempty"`
	FirebaseToken string `json:"firebasetoken,omitempty"`
	CountryOpco   string `json:"countryOpco,omitempty"`
	Language      string `json:"language,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string         `json:"token"`
	User      map[string]any `json:"user"`
	CSRFToken string         `json:"csrfToken,omitempty"`
	ExpiresAt string         `json:"expiresAt,omitempty"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phonenumber"`
	Role        string `json:"role,omitempty"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ForgotPasswordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
