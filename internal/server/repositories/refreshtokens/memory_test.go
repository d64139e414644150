package refreshtokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink-app/carelink/internal/common"
	"github.com/carelink-app/carelink/internal/server/models"
)

func newRecord(jti, userID, deviceID string) *models.RefreshToken {
	now := time.Now()
	return &models.RefreshToken{
		JTI:       jti,
		UserID:    userID,
		DeviceID:  deviceID,
		TokenHash: "hash-" + jti,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestMemoryRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	rec := newRecord("jti-1", "user-1", "device-1")
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "device-1", got.DeviceID)
	assert.Nil(t, got.RevokedAt)

	// Mutating the returned copy must not leak into the store.
	got.DeviceID = "tampered"
	again, err := repo.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "device-1", again.DeviceID)
}

func TestMemoryRepository_FindByJTI_NotFound(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.FindByJTI(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryRepository_MarkRevoked_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, newRecord("jti-1", "user-1", "device-1")))

	now := time.Now()
	ok, err := repo.MarkRevoked(ctx, "jti-1", now, "jti-2")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	require.NotNil(t, got.ReplacedByJTI)
	assert.Equal(t, "jti-2", *got.ReplacedByJTI)
	assert.True(t, got.Revoked())

	// Second revocation loses: false, no error, record unchanged.
	ok, err = repo.MarkRevoked(ctx, "jti-1", now.Add(time.Minute), "jti-3")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = repo.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "jti-2", *got.ReplacedByJTI)
}

func TestMemoryRepository_MarkRevoked_MissingRecord(t *testing.T) {
	repo := NewMemoryRepository()
	ok, err := repo.MarkRevoked(context.Background(), "missing", time.Now(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRepository_MarkRevoked_WithoutReplacement(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, newRecord("jti-1", "user-1", "device-1")))

	ok, err := repo.MarkRevoked(ctx, "jti-1", time.Now(), "")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	assert.Nil(t, got.ReplacedByJTI)
}

func TestMemoryRepository_TouchLastUsed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, newRecord("jti-1", "user-1", "device-1")))

	at := time.Now()
	ok, err := repo.TouchLastUsed(ctx, "jti-1", at)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
	assert.True(t, got.LastUsedAt.Equal(at))

	ok, err = repo.TouchLastUsed(ctx, "missing", at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRepository_RevokeByDevice(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, newRecord("jti-1", "user-1", "device-1")))
	require.NoError(t, repo.Create(ctx, newRecord("jti-2", "user-1", "device-1")))
	require.NoError(t, repo.Create(ctx, newRecord("jti-3", "user-1", "device-2")))
	require.NoError(t, repo.Create(ctx, newRecord("jti-4", "user-2", "device-1")))

	n, err := repo.RevokeByDevice(ctx, "user-1", "device-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Other device and other user untouched.
	got, err := repo.FindByJTI(ctx, "jti-3")
	require.NoError(t, err)
	assert.False(t, got.Revoked())
	got, err = repo.FindByJTI(ctx, "jti-4")
	require.NoError(t, err)
	assert.False(t, got.Revoked())

	// Already-revoked rows are not counted again.
	n, err = repo.RevokeByDevice(ctx, "user-1", "device-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryRepository_RevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, newRecord("jti-1", "user-1", "device-1")))
	require.NoError(t, repo.Create(ctx, newRecord("jti-2", "user-1", "device-2")))
	require.NoError(t, repo.Create(ctx, newRecord("jti-3", "user-2", "device-3")))

	n, err := repo.RevokeAllForUser(ctx, "user-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := repo.FindByJTI(ctx, "jti-3")
	require.NoError(t, err)
	assert.False(t, got.Revoked())
}
