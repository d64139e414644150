package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/carelink-app/carelink/internal/client/api"
	"github.com/carelink-app/carelink/internal/logging"
)

const (
	// DefaultExpiryBuffer is how long before actual expiry an access token is
	// treated as expired, so a token handed to a caller is never about to die
	// mid-request.
	DefaultExpiryBuffer = 60 * time.Second

	// DefaultOfflineGrace bounds how long cached data stays accessible
	// without the server confirming the session.
	DefaultOfflineGrace = 7 * 24 * time.Hour
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrReauthRequired means the server rejected the cached session; the
	// user must log in with credentials again.
	ErrReauthRequired = errors.New("reauthentication required")
)

// State summarizes the session from the app's point of view.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateOffline
	StateReauthRequired
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateOffline:
		return "offline"
	case StateReauthRequired:
		return "reauth_required"
	default:
		return "unauthenticated"
	}
}

// OfflineAccessReason explains a CheckOfflineAccess verdict.
type OfflineAccessReason string

const (
	OfflineAccessOK            OfflineAccessReason = "ok"
	OfflineAccessNoSession     OfflineAccessReason = "no_session"
	OfflineAccessReauth        OfflineAccessReason = "reauth_required"
	OfflineAccessGraceExpired  OfflineAccessReason = "grace_expired"
	OfflineAccessTokensExpired OfflineAccessReason = "tokens_expired"
	OfflineAccessNeverOnline   OfflineAccessReason = "never_online"
)

// Authenticator is the server API surface the manager needs.
type Authenticator interface {
	Login(ctx context.Context, email, password, deviceID string) (*api.Session, error)
	Refresh(ctx context.Context, refreshToken, deviceID string) (*api.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

// Config tunes a Manager. Zero durations fall back to the defaults.
type Config struct {
	DeviceID     string
	ExpiryBuffer time.Duration
	OfflineGrace time.Duration
}

// Manager owns the client's tokens. It transparently refreshes the access
// token before expiry, collapsing concurrent refresh attempts into a single
// network call, and distinguishes the server saying no (wipe tokens, ask
// the user to log in) from the server being unreachable (keep tokens, run
// offline within the grace window).
type Manager struct {
	client Authenticator
	store  Store
	logger logging.Logger
	cfg    Config

	group singleflight.Group
	now   func() time.Time

	mu    sync.Mutex
	snap  *Snapshot
	state State
}

func NewManager(client Authenticator, store Store, logger logging.Logger, cfg Config) *Manager {
	if cfg.ExpiryBuffer <= 0 {
		cfg.ExpiryBuffer = DefaultExpiryBuffer
	}
	if cfg.OfflineGrace <= 0 {
		cfg.OfflineGrace = DefaultOfflineGrace
	}
	return &Manager{
		client: client,
		store:  store,
		logger: logger.With("module", "session_manager"),
		cfg:    cfg,
		now:    time.Now,
		state:  StateUnauthenticated,
	}
}

// Restore loads the persisted snapshot, if any. Called on app start.
func (m *Manager) Restore() error {
	snap, err := m.store.Load()
	if errors.Is(err, ErrNoSnapshot) {
		return ErrNotAuthenticated
	}
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.state = StateAuthenticated
	return nil
}

// Login authenticates with credentials and replaces any existing session.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	sess, err := m.client.Login(ctx, email, password, m.cfg.DeviceID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.adoptLocked(sess)
	return nil
}

// Logout revokes the server-side session when possible and always clears
// local state: a dead server must not keep a user logged in.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	accessToken := ""
	if m.snap != nil {
		accessToken = m.snap.AccessToken
	}
	m.mu.Unlock()

	if accessToken != "" {
		if err := m.client.Logout(ctx, accessToken); err != nil {
			m.logger.Warn(ctx, "server-side logout failed", "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
	m.state = StateUnauthenticated
	return m.store.Clear()
}

// State reports the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetAccessToken returns an access token valid for at least the expiry
// buffer, refreshing first when needed. Concurrent callers during a refresh
// all receive the result of one network call.
//
// When the server is unreachable the cached token is returned as long as it
// has not actually expired, rather than failing every waiter outright; past
// actual expiry the transport error surfaces. Either way the manager
// reports StateOffline and keeps the tokens for when the server returns.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.snap == nil {
		state := m.state
		m.mu.Unlock()
		if state == StateReauthRequired {
			return "", ErrReauthRequired
		}
		return "", ErrNotAuthenticated
	}
	now := m.now()
	if m.snap.AccessExpiresAt.After(now.Add(m.cfg.ExpiryBuffer)) {
		token := m.snap.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do("refresh", func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh runs inside the singleflight group. The snapshot is re-checked
// first: a caller that queued behind a completed refresh should reuse its
// result, not trigger another one.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.snap == nil {
		m.mu.Unlock()
		return "", ErrReauthRequired
	}
	now := m.now()
	if m.snap.AccessExpiresAt.After(now.Add(m.cfg.ExpiryBuffer)) {
		token := m.snap.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	refreshToken := m.snap.RefreshToken
	m.mu.Unlock()

	sess, err := m.client.Refresh(ctx, refreshToken, m.cfg.DeviceID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if isCredentialError(err) {
			m.logger.Info(ctx, "session rejected by server", "error", err)
			m.snap = nil
			m.state = StateReauthRequired
			if clearErr := m.store.Clear(); clearErr != nil {
				m.logger.Warn(ctx, "clearing rejected session failed", "error", clearErr)
			}
			return "", fmt.Errorf("%w: %v", ErrReauthRequired, err)
		}

		m.state = StateOffline
		if m.snap != nil && m.snap.AccessExpiresAt.After(m.now()) {
			m.logger.Debug(ctx, "serving cached token while offline", "error", err)
			return m.snap.AccessToken, nil
		}
		return "", err
	}

	m.adoptLocked(sess)
	return sess.AccessToken, nil
}

// adoptLocked installs a fresh server-confirmed session. Callers hold mu.
func (m *Manager) adoptLocked(sess *api.Session) {
	now := m.now()
	snap := &Snapshot{
		AccessToken:      sess.AccessToken,
		AccessExpiresAt:  sess.AccessExpiresAt,
		RefreshToken:     sess.RefreshToken,
		RefreshExpiresAt: sess.RefreshExpiresAt,
		DeviceID:         m.cfg.DeviceID,
		LastOnlineAt:     now,
	}
	// Refresh responses without rotation keep the old refresh token.
	if snap.RefreshToken == "" && m.snap != nil {
		snap.RefreshToken = m.snap.RefreshToken
		snap.RefreshExpiresAt = m.snap.RefreshExpiresAt
	}
	m.snap = snap
	m.state = StateAuthenticated

	if err := m.store.Save(snap); err != nil {
		m.logger.Warn(context.Background(), "persisting session failed", "error", err)
	}
}

// IsWithinOfflineGracePeriod reports whether the last server confirmation
// is recent enough for offline use. Exactly at the boundary counts as
// outside the window.
func (m *Manager) IsWithinOfflineGracePeriod() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil || m.snap.LastOnlineAt.IsZero() {
		return false
	}
	return m.now().Sub(m.snap.LastOnlineAt) < m.cfg.OfflineGrace
}

// CheckOfflineAccess reports whether cached data may be used without the
// server, and why not when it may not.
func (m *Manager) CheckOfflineAccess() (bool, OfflineAccessReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateReauthRequired {
		return false, OfflineAccessReauth
	}
	if m.snap == nil {
		return false, OfflineAccessNoSession
	}
	if m.snap.LastOnlineAt.IsZero() {
		return false, OfflineAccessNeverOnline
	}
	now := m.now()
	if now.Sub(m.snap.LastOnlineAt) >= m.cfg.OfflineGrace {
		return false, OfflineAccessGraceExpired
	}
	// A refresh token past its signed lifetime cannot be redeemed even once
	// the server is back, so cached data goes with it.
	if !m.snap.RefreshExpiresAt.After(now) {
		return false, OfflineAccessTokensExpired
	}
	return true, OfflineAccessOK
}

// OfflineAccessToken returns the cached access token for offline use, even
// past its expiry: local data access relies on the grace window, not on the
// server-side token lifetime.
func (m *Manager) OfflineAccessToken() (string, error) {
	if ok, reason := m.CheckOfflineAccess(); !ok {
		return "", fmt.Errorf("offline access denied: %s", reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.AccessToken, nil
}

func isCredentialError(err error) bool {
	return errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrDeviceMismatch)
}
