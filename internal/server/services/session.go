// Package services contains server-side business logic. This file
// implements SessionService: login (credential check, token issuance),
// refresh (validation, optional rotation) and revocation.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink-app/carelink/internal/common"
	"github.com/carelink-app/carelink/internal/logging"
	"github.com/carelink-app/carelink/internal/server/audit"
	"github.com/carelink-app/carelink/internal/server/models"
	"github.com/carelink-app/carelink/internal/server/password"
	"github.com/carelink-app/carelink/internal/server/repositories/refreshtokens"
	"github.com/carelink-app/carelink/internal/server/repositories/users"
	"github.com/carelink-app/carelink/internal/server/tokens"
)

// LoginResult carries everything issued on a successful login.
type LoginResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	JTI              string
	UserID           string
	DeviceID         string
	Role             string
}

// RefreshResult carries a new access token and, when rotation occurred, the
// replacement refresh token. Rotated is false when the caller opted out of
// rotation; the refresh fields are then empty.
type RefreshResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Rotated          bool
	JTI              string
	UserID           string
	DeviceID         string
}

// SessionService orchestrates the token subsystem. All collaborators are
// injected; there is no package-level state.
type SessionService struct {
	users    users.Repository
	store    refreshtokens.Repository
	codec    *tokens.Codec
	verifier *password.Verifier
	audit    *audit.Dispatcher
	logger   logging.Logger

	now func() time.Time
}

func NewSessionService(
	usersRepo users.Repository,
	store refreshtokens.Repository,
	codec *tokens.Codec,
	verifier *password.Verifier,
	auditor *audit.Dispatcher,
	logger logging.Logger,
) *SessionService {
	return &SessionService{
		users:    usersRepo,
		store:    store,
		codec:    codec,
		verifier: verifier,
		audit:    auditor,
		logger:   logger.With("module", "session_service"),
		now:      time.Now,
	}
}

// Login validates the device id and credentials, then issues an access token
// and a device-bound refresh token.
//
// Unknown email, missing credential hash, inactive account and wrong
// password all return ErrInvalidCredentials, and every path performs
// exactly one argon2 verification so response timing does not reveal which
// case occurred.
func (s *SessionService) Login(ctx context.Context, email, plainPassword, deviceID string) (*LoginResult, error) {
	if !isWellFormedDeviceID(deviceID) {
		return nil, common.ErrInvalidDevice
	}

	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	storedHash := s.verifier.DummyHash()
	if user != nil && user.PasswordHash != "" {
		storedHash = user.PasswordHash
	}

	ok, err := s.verifier.Verify(plainPassword, storedHash)
	if err != nil {
		// A stored hash we cannot parse is a data problem, not a caller
		// problem; it still must not leak anything.
		s.logger.Error(ctx, "unverifiable password hash", "email", email, "error", err)
		return nil, common.ErrInvalidCredentials
	}

	if user == nil || user.PasswordHash == "" || !user.IsActive || !ok {
		s.audit.Dispatch(audit.Event{
			Actor:    email,
			Action:   "auth.login.failed",
			DeviceID: deviceID,
			At:       s.now(),
		})
		return nil, common.ErrInvalidCredentials
	}

	now := s.now()

	// One active record per (user, device): a fresh login supersedes any
	// session the device already held, so a previously issued refresh
	// token stops being redeemable.
	if _, err := s.store.RevokeByDevice(ctx, user.ID, deviceID, now); err != nil {
		return nil, fmt.Errorf("revoking prior device tokens: %w", err)
	}

	issued, err := s.issueSession(ctx, user.ID, deviceID, now)
	if err != nil {
		return nil, err
	}

	accessToken, accessExpiresAt, err := s.codec.SignAccess(user.ID, deviceID, user.Role, now)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	s.audit.Dispatch(audit.Event{
		Actor:    user.ID,
		Action:   "auth.login",
		DeviceID: deviceID,
		Metadata: map[string]string{"jti": issued.jti},
		At:       now,
	})

	return &LoginResult{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     issued.token,
		RefreshExpiresAt: issued.expiresAt,
		JTI:              issued.jti,
		UserID:           user.ID,
		DeviceID:         deviceID,
		Role:             user.Role,
	}, nil
}

// Refresh validates a refresh token against both its signature and its
// store record, then issues a new access token. With rotate set it also
// replaces the refresh token: the new record is created first and the old
// one revoked second, so a failure between the two steps leaves the client
// with a working refresh path instead of none (at the cost of two
// live-looking records until the revocation is retried by the next
// refresh).
//
// Validation order is fixed: signature, record existence, device binding,
// revocation, expiry.
func (s *SessionService) Refresh(ctx context.Context, refreshToken, deviceID string, rotate bool) (*RefreshResult, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, tokens.ErrMalformedClaims) {
			s.logger.Warn(ctx, "refresh token with malformed claims", "error", err)
		} else {
			s.logger.Debug(ctx, "refresh token failed verification", "error", err)
		}
		return nil, common.ErrInvalidToken
	}

	rec, err := s.store.FindByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("looking up refresh record: %w", err)
	}

	if rec.DeviceID != deviceID {
		// Replay/theft signal: the token is valid but presented from the
		// wrong device. Worth escalating upstream; see the audit trail.
		s.audit.Dispatch(audit.Event{
			Actor:    rec.UserID,
			Action:   "auth.refresh.device_mismatch",
			DeviceID: deviceID,
			Metadata: map[string]string{"jti": rec.JTI, "bound_device_id": rec.DeviceID},
			At:       s.now(),
		})
		return nil, common.ErrDeviceMismatch
	}

	now := s.now()

	if rec.Revoked() {
		return nil, common.ErrTokenRevoked
	}
	if !rec.ExpiresAt.After(now) {
		return nil, common.ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil || !user.IsActive {
		// A deleted or deactivated account invalidates its sessions.
		return nil, common.ErrTokenRevoked
	}

	if ok, err := s.store.TouchLastUsed(ctx, rec.JTI, now); err != nil || !ok {
		s.logger.Warn(ctx, "touch last used failed", "jti", rec.JTI, "error", err)
	}

	accessToken, accessExpiresAt, err := s.codec.SignAccess(rec.UserID, deviceID, user.Role, now)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	result := &RefreshResult{
		AccessToken:     accessToken,
		AccessExpiresAt: accessExpiresAt,
		JTI:             rec.JTI,
		UserID:          rec.UserID,
		DeviceID:        deviceID,
	}

	if !rotate {
		return result, nil
	}

	issued, err := s.issueSession(ctx, rec.UserID, deviceID, now)
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.MarkRevoked(ctx, rec.JTI, now, issued.jti)
	switch {
	case err != nil:
		// The new record exists, so the client keeps a working session;
		// the stale record stays revocable and expires on its own.
		s.logger.Warn(ctx, "revoking rotated refresh token failed", "jti", rec.JTI, "error", err)
	case !revoked:
		// A concurrent refresh beat us to the revocation. Serving our own
		// freshly created token is still safe.
		s.logger.Info(ctx, "refresh rotation lost race", "jti", rec.JTI)
	}

	s.audit.Dispatch(audit.Event{
		Actor:    rec.UserID,
		Action:   "auth.refresh.rotated",
		DeviceID: deviceID,
		Metadata: map[string]string{"old_jti": rec.JTI, "new_jti": issued.jti},
		At:       now,
	})

	result.Rotated = true
	result.RefreshToken = issued.token
	result.RefreshExpiresAt = issued.expiresAt
	result.JTI = issued.jti
	return result, nil
}

// Logout revokes every active refresh token for (user, device) and returns
// how many were revoked.
func (s *SessionService) Logout(ctx context.Context, userID, deviceID string) (int64, error) {
	now := s.now()
	n, err := s.store.RevokeByDevice(ctx, userID, deviceID, now)
	if err != nil {
		return 0, fmt.Errorf("revoking device tokens: %w", err)
	}
	s.audit.Dispatch(audit.Event{
		Actor:    userID,
		Action:   "auth.logout",
		DeviceID: deviceID,
		At:       now,
	})
	return n, nil
}

// LogoutEverywhere revokes every active refresh token the user has, on any
// device.
func (s *SessionService) LogoutEverywhere(ctx context.Context, userID string) (int64, error) {
	now := s.now()
	n, err := s.store.RevokeAllForUser(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("revoking user tokens: %w", err)
	}
	s.audit.Dispatch(audit.Event{
		Actor:  userID,
		Action: "auth.logout_everywhere",
		At:     now,
	})
	return n, nil
}

// VerifyAccess exposes access-token verification to the HTTP layer.
func (s *SessionService) VerifyAccess(tokenString string) (*tokens.AccessClaims, error) {
	claims, err := s.codec.VerifyAccess(tokenString)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

type issuedRefresh struct {
	token     string
	jti       string
	expiresAt time.Time
}

// issueSession mints a refresh token under a fresh jti and persists its
// record. Shared by login and rotation.
func (s *SessionService) issueSession(ctx context.Context, userID, deviceID string, now time.Time) (*issuedRefresh, error) {
	jti := uuid.NewString()

	refreshToken, expiresAt, err := s.codec.SignRefresh(userID, deviceID, jti, now)
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	rec := &models.RefreshToken{
		JTI:       jti,
		UserID:    userID,
		DeviceID:  deviceID,
		TokenHash: tokens.HashToken(refreshToken),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing refresh record: %w", err)
	}

	return &issuedRefresh{token: refreshToken, jti: jti, expiresAt: expiresAt}, nil
}

// NormalizeEmail lower-cases and trims an email for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isWellFormedDeviceID(deviceID string) bool {
	if deviceID == "" {
		return false
	}
	_, err := uuid.Parse(deviceID)
	return err == nil
}
