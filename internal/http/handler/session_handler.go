package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/groceryplus/admin-console/internal/domain"
	"github.com/groceryplus/admin-console/internal/http/response"
	"github.com/groceryplus/admin-console/internal/observability"
	"github.com/groceryplus/admin-console/internal/session"
)

type SessionHandler struct {
	manager *session.Manager
	errs    errorWriter
}

func NewSessionHandler(manager *session.Manager, nav Navigator) *SessionHandler {
	return &SessionHandler{manager: manager, errs: errorWriter{loginRoute: manager.LoginRoute(), nav: nav}}
}

type sessionView struct {
	IsAuthenticated bool            `json:"isAuthenticated"`
	User            domain.Profile  `json:"user,omitempty"`
	DisplayName     string          `json:"displayName,omitempty"`
	SessionExpiry   *time.Time      `json:"sessionExpiry,omitempty"`
	Metadata        domain.Metadata `json:"metadata"`
}

func (h *SessionHandler) view() sessionView {
	snap := h.manager.Store().Snapshot(time.Now())
	v := sessionView{IsAuthenticated: snap.IsAuthenticated, SessionExpiry: snap.SessionExpiry, Metadata: snap.Metadata}
	if snap.IsAuthenticated {
		v.User = snap.UserDetails
		v.DisplayName = snap.UserDetails.DisplayName()
	}
	return v
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.view())
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "username and password are required", nil)
		return
	}
	if !h.manager.Login(r.Context(), req.Username, req.Password) {
		observability.Audit(r, "session.login.rejected", "username", req.Username)
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "login failed", nil)
		return
	}
	observability.Audit(r, "session.login", "username", req.Username)
	response.JSON(w, r, http.StatusOK, h.view())
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Logout(r.Context()); err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	observability.Audit(r, "session.logout")
	response.JSON(w, r, http.StatusOK, h.view())
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	if !h.manager.Register(r.Context(), req) {
		response.Error(w, r, http.StatusBadRequest, "REGISTRATION_FAILED", "registration failed", nil)
		return
	}
	observability.Audit(r, "session.register", "username", req.Username)
	response.JSON(w, r, http.StatusCreated, h.view())
}

func (h *SessionHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	ok := h.manager.ForgotPassword(r.Context(), req.Email)
	// the outcome is not revealed to the caller
	response.JSON(w, r, http.StatusAccepted, map[string]bool{"accepted": true})
	if !ok {
		observability.Audit(r, "session.forgot_password.failed")
	}
}
