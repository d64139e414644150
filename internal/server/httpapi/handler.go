// Package httpapi exposes the session service over HTTP/JSON:
//
//	POST /api/auth/login    {email, password, deviceId}
//	POST /api/auth/refresh  {refreshToken, deviceId, rotate?}
//	POST /api/auth/logout      (bearer access token)
//	POST /api/auth/logout/all  (bearer access token)
//	GET  /healthz
//
// Timestamps on the wire are RFC 3339. Refresh response fields for the
// rotated token are present only when rotation occurred.
package httpapi

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/carelink-app/carelink/internal/common"
	"github.com/carelink-app/carelink/internal/logging"
	"github.com/carelink-app/carelink/internal/server/ratelimit"
	"github.com/carelink-app/carelink/internal/server/services"
)

type Handler struct {
	sessions       *services.SessionService
	logger         logging.Logger
	loginLimiter   *ratelimit.Limiter
	refreshLimiter *ratelimit.Limiter
}

func NewHandler(sessions *services.SessionService, logger logging.Logger, loginLimiter, refreshLimiter *ratelimit.Limiter) *Handler {
	return &Handler{
		sessions:       sessions,
		logger:         logger.With("module", "httpapi"),
		loginLimiter:   loginLimiter,
		refreshLimiter: refreshLimiter,
	}
}

// Routes returns the API mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.HandleFunc("POST /api/auth/logout/all", h.handleLogoutAll)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return mux
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

type loginResponse struct {
	AccessToken           string `json:"accessToken"`
	AccessTokenExpiresAt  string `json:"accessTokenExpiresAt"`
	RefreshToken          string `json:"refreshToken"`
	RefreshTokenExpiresAt string `json:"refreshTokenExpiresAt"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, common.CodeValidation, "email, password and deviceId are required")
		return
	}

	if !h.allow(r, h.loginLimiter, "login:"+services.NormalizeEmail(req.Email)+":"+clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, common.CodeRateLimited, "too many login attempts")
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Email, req.Password, req.DeviceID)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:           result.AccessToken,
		AccessTokenExpiresAt:  result.AccessExpiresAt.UTC().Format(time.RFC3339),
		RefreshToken:          result.RefreshToken,
		RefreshTokenExpiresAt: result.RefreshExpiresAt.UTC().Format(time.RFC3339),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	DeviceID     string `json:"deviceId"`
	// Rotate defaults to true; stricter deployments should leave it unset.
	Rotate *bool `json:"rotate,omitempty"`
}

type refreshResponse struct {
	AccessToken           string `json:"accessToken"`
	AccessTokenExpiresAt  string `json:"accessTokenExpiresAt"`
	RefreshToken          string `json:"refreshToken,omitempty"`
	RefreshTokenExpiresAt string `json:"refreshTokenExpiresAt,omitempty"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body")
		return
	}
	if req.RefreshToken == "" || req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, common.CodeValidation, "refreshToken and deviceId are required")
		return
	}

	if !h.allow(r, h.refreshLimiter, "refresh:"+req.DeviceID) {
		writeError(w, http.StatusTooManyRequests, common.CodeRateLimited, "too many refresh attempts")
		return
	}

	rotate := req.Rotate == nil || *req.Rotate

	result, err := h.sessions.Refresh(r.Context(), req.RefreshToken, req.DeviceID, rotate)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	resp := refreshResponse{
		AccessToken:          result.AccessToken,
		AccessTokenExpiresAt: result.AccessExpiresAt.UTC().Format(time.RFC3339),
	}
	if result.Rotated {
		resp.RefreshToken = result.RefreshToken
		resp.RefreshTokenExpiresAt = result.RefreshExpiresAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, err := h.sessions.VerifyAccess(bearerToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, common.CodeInvalidToken, "invalid access token")
		return
	}

	if _, err := h.sessions.Logout(r.Context(), claims.Subject, claims.DeviceID); err != nil {
		h.logger.Error(r.Context(), "logout failed", "user_id", claims.Subject, "error", err)
		writeError(w, http.StatusInternalServerError, common.CodeInternal, "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLogoutAll revokes every live refresh token the user holds, on any
// device. Used when a device is lost or a credential leak is suspected.
func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, err := h.sessions.VerifyAccess(bearerToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, common.CodeInvalidToken, "invalid access token")
		return
	}

	if _, err := h.sessions.LogoutEverywhere(r.Context(), claims.Subject); err != nil {
		h.logger.Error(r.Context(), "logout everywhere failed", "user_id", claims.Subject, "error", err)
		writeError(w, http.StatusInternalServerError, common.CodeInternal, "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAuthError maps service errors onto the wire contract. NotFound is
// deliberately indistinguishable from an invalid token so callers cannot
// probe which jtis ever existed.
func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidDevice):
		writeError(w, http.StatusBadRequest, common.CodeInvalidDevice, "deviceId must be a valid UUID")
	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, common.CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusUnauthorized, common.CodeInvalidToken, "invalid refresh token")
	case errors.Is(err, common.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, common.CodeExpired, "refresh token expired")
	case errors.Is(err, common.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, common.CodeRevoked, "refresh token revoked")
	case errors.Is(err, common.ErrDeviceMismatch):
		writeError(w, http.StatusForbidden, common.CodeDeviceMismatch, "token is bound to a different device")
	default:
		h.logger.Error(r.Context(), "auth operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, common.CodeInternal, "internal error")
	}
}

// allow consults the limiter, failing open on store errors: losing the
// counter backend should not take down login.
func (h *Handler) allow(r *http.Request, limiter *ratelimit.Limiter, key string) bool {
	if limiter == nil {
		return true
	}
	err := limiter.Allow(r.Context(), key)
	if errors.Is(err, ratelimit.ErrRateLimited) {
		return false
	}
	if err != nil {
		h.logger.Warn(r.Context(), "rate limit store unavailable", "error", err)
	}
	return true
}

func bearerToken(r *http.Request) string {
	value := r.Header.Get(common.AuthorizationHeaderName)
	if token, found := strings.CutPrefix(value, "Bearer "); found {
		return token
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
