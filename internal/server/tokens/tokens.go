// Package tokens implements the signed-token codec: short-lived access
// tokens and device-bound refresh tokens, both HS256 JWTs signed with a
// shared secret.
//
// Signing and verification are pure functions of (claims, secret, config).
// The expected algorithm, issuer and audience are pinned on verify, so an
// attacker cannot downgrade the algorithm or replay tokens minted for a
// different deployment. Refresh tokens are never stored verbatim anywhere;
// the store keeps only HashToken of the signed string.
package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MinSecretLength is the enforced floor for the HMAC signing secret.
	MinSecretLength = 32

	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour

	DefaultIssuer   = "carelink"
	DefaultAudience = "carelink-mobile"
)

var (
	ErrSecretTooShort = errors.New("signing secret shorter than 32 bytes")

	// ErrMalformedClaims marks a token whose signature checked out but
	// whose claims are structurally unusable (missing subject or device).
	// Callers surface it as the same external kind as a signature failure
	// but log it separately.
	ErrMalformedClaims = errors.New("malformed token claims")
)

// Config fixes the codec inputs. TTLs at or below zero fall back to the
// defaults; the secret length is a hard constructor error, not a fallback.
type Config struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AccessClaims is the payload of an access token. Subject carries the user
// id; validity is determined purely by signature and expiry.
type AccessClaims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"deviceId"`
	Role     string `json:"role"`
}

// RefreshClaims is the payload of a refresh token. The jti (RegisteredClaims.ID)
// is the primary key into the refresh token store.
type RefreshClaims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"deviceId"`
}

// Codec signs and verifies both token types. Immutable after construction.
type Codec struct {
	cfg Config
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &Codec{cfg: cfg}, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// SignAccess mints an access token for userID bound to deviceID.
func (c *Codec) SignAccess(userID, deviceID, role string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(c.cfg.AccessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		DeviceID: deviceID,
		Role:     role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// SignRefresh mints a refresh token for userID bound to deviceID under the
// given jti.
func (c *Codec) SignRefresh(userID, deviceID, jti string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(c.cfg.RefreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		DeviceID: deviceID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyAccess checks signature, algorithm, issuer, audience and expiry,
// then the structural presence of subject and device id.
func (c *Codec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.verify(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.DeviceID == "" {
		return nil, fmt.Errorf("%w: missing subject or device id", ErrMalformedClaims)
	}
	return claims, nil
}

// VerifyRefresh is VerifyAccess for refresh tokens, additionally requiring
// a jti.
func (c *Codec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.verify(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.DeviceID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject, device id or jti", ErrMalformedClaims)
	}
	return claims, nil
}

func (c *Codec) verify(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenUnverifiable
	}
	return nil
}

// HashToken returns the SHA-256 hex digest of a signed token string. Only
// this digest is ever persisted.
func HashToken(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}
