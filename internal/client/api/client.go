// Package api implements the HTTP client for the auth server. It exposes
// login, refresh and logout and classifies failures into two families the
// session manager treats very differently: credential-level rejections
// (ErrUnauthorized, ErrDeviceMismatch) that invalidate cached tokens, and
// transport-level failures (ErrNetwork, ErrTimeout) that leave them alone.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/carelink-app/carelink/internal/common"
)

const defaultTimeout = 15 * time.Second

// Session is what the server hands back on login and refresh.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Client talks to one auth server. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	DeviceID     string `json:"deviceId"`
}

type sessionResponse struct {
	AccessToken           string `json:"accessToken"`
	AccessTokenExpiresAt  string `json:"accessTokenExpiresAt"`
	RefreshToken          string `json:"refreshToken"`
	RefreshTokenExpiresAt string `json:"refreshTokenExpiresAt"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password, deviceID string) (*Session, error) {
	var resp sessionResponse
	err := c.post(ctx, "/api/auth/login", loginRequest{Email: email, Password: password, DeviceID: deviceID}, "", &resp)
	if err != nil {
		return nil, err
	}
	return parseSession(&resp, true)
}

// Refresh exchanges a refresh token for a new session. The server rotates
// the refresh token on every call.
func (c *Client) Refresh(ctx context.Context, refreshToken, deviceID string) (*Session, error) {
	var resp sessionResponse
	err := c.post(ctx, "/api/auth/refresh", refreshRequest{RefreshToken: refreshToken, DeviceID: deviceID}, "", &resp)
	if err != nil {
		return nil, err
	}
	return parseSession(&resp, resp.RefreshToken != "")
}

// Logout revokes the server-side session for this device.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/api/auth/logout", struct{}{}, accessToken, nil)
}

func (c *Client) post(ctx context.Context, path string, payload any, bearer string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, resp.Body)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func parseSession(resp *sessionResponse, withRefresh bool) (*Session, error) {
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrInvalidResponse)
	}
	accessExpiresAt, err := time.Parse(time.RFC3339, resp.AccessTokenExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad access expiry: %v", ErrInvalidResponse, err)
	}

	s := &Session{AccessToken: resp.AccessToken, AccessExpiresAt: accessExpiresAt}
	if !withRefresh {
		return s, nil
	}

	if resp.RefreshToken == "" {
		return nil, fmt.Errorf("%w: missing refresh token", ErrInvalidResponse)
	}
	refreshExpiresAt, err := time.Parse(time.RFC3339, resp.RefreshTokenExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad refresh expiry: %v", ErrInvalidResponse, err)
	}
	s.RefreshToken = resp.RefreshToken
	s.RefreshExpiresAt = refreshExpiresAt
	return s, nil
}

// decodeError maps a non-2xx reply onto the client error families. Any 401,
// whatever the server-side reason, means the cached session is dead.
func decodeError(status int, body io.Reader) error {
	var er errorResponse
	_ = json.NewDecoder(body).Decode(&er)

	switch {
	case er.Code == common.CodeDeviceMismatch || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrDeviceMismatch, er.Message)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s (%s)", ErrUnauthorized, er.Message, er.Code)
	case er.Code == common.CodeRateLimited || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, er.Message)
	default:
		return fmt.Errorf("%w: status %d: %s (%s)", ErrInvalidResponse, status, er.Message, er.Code)
	}
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
