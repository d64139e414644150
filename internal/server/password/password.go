// Package password implements credential hashing and verification for the
// identity store using argon2id in standard PHC string encoding.
//
// Work factors are configurable but clamped to enforced floors: a
// misconfigured deployment degrades to the minimum safe parameters instead
// of refusing to start. Verification is timing-safe against account
// enumeration: callers that find no credential record verify the submitted
// password against a precomputed dummy hash so the comparison cost is
// identical either way.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	algorithmID = "argon2id"
)

var ErrMalformedHash = errors.New("malformed password hash")

// Config holds argon2id work factors. Zero or below-floor values are
// clamped to the package floors by NewVerifier.
type Config struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production work factors.
func DefaultConfig() Config {
	return Config{
		MemoryKB:    64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Verifier hashes and verifies passwords. Instances are immutable and safe
// for concurrent use.
type Verifier struct {
	cfg       Config
	dummyHash string
}

// NewVerifier clamps cfg to the enforced floors and precomputes the dummy
// hash used for absent accounts.
func NewVerifier(cfg Config) (*Verifier, error) {
	cfg = clamp(cfg)

	v := &Verifier{cfg: cfg}

	// The dummy must go through the same code path as a real hash so a
	// missing account costs exactly one argon2 computation, like any other
	// failed login.
	dummy, err := v.Hash("carelink-dummy-credential")
	if err != nil {
		return nil, fmt.Errorf("precomputing dummy hash: %w", err)
	}
	v.dummyHash = dummy

	return v, nil
}

// DummyHash returns a valid hash of a fixed throwaway password. Callers use
// it as the stored hash when the account does not exist.
func (v *Verifier) DummyHash() string {
	return v.dummyHash
}

// Hash derives an argon2id hash of password and encodes it as a PHC string:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
func (v *Verifier) Hash(password string) (string, error) {
	salt := make([]byte, v.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, v.cfg.Time, v.cfg.MemoryKB, v.cfg.Parallelism, v.cfg.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		v.cfg.MemoryKB,
		v.cfg.Time,
		v.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encodedHash. The comparison is
// constant-time over the derived keys. A malformed stored hash yields
// ErrMalformedHash, never a panic.
func (v *Verifier) Verify(password, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memoryKB, parsed.parallelism, uint32(len(parsed.hash)))

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with weaker work
// factors than the verifier's current configuration.
func (v *Verifier) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if parsed.memoryKB < v.cfg.MemoryKB || parsed.time < v.cfg.Time || parsed.parallelism < v.cfg.Parallelism {
		return true, nil
	}
	return false, nil
}

func clamp(cfg Config) Config {
	if cfg.MemoryKB < minMemoryKB {
		cfg.MemoryKB = minMemoryKB
	}
	if cfg.Time < minTime {
		cfg.Time = minTime
	}
	if cfg.Parallelism < minParallelism {
		cfg.Parallelism = minParallelism
	}
	if cfg.SaltLength < minSaltLength {
		cfg.SaltLength = minSaltLength
	}
	if cfg.KeyLength < minKeyLength {
		cfg.KeyLength = minKeyLength
	}
	return cfg
}

type parsedPHC struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedHash
	}
	if parts[1] != algorithmID {
		return nil, ErrMalformedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, ErrMalformedHash
	}

	var p parsedPHC
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return nil, ErrMalformedHash
		}
		switch kv[0] {
		case "m":
			p.memoryKB = uint32(n)
		case "t":
			p.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, ErrMalformedHash
			}
			p.parallelism = uint8(n)
		default:
			return nil, ErrMalformedHash
		}
	}
	if p.memoryKB == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, ErrMalformedHash
	}

	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return nil, ErrMalformedHash
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.hash) == 0 {
		return nil, ErrMalformedHash
	}

	return &p, nil
}
