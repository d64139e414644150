package refreshtokens

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink-app/carelink/internal/common"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgres_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := newRecord("jti-1", "user-1", "device-1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(rec.JTI, rec.UserID, rec.DeviceID, rec.TokenHash, rec.IssuedAt, rec.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByJTI(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	cols := []string{"jti", "user_id", "device_id", "token_hash", "issued_at", "expires_at",
		"last_used_at", "revoked_at", "replaced_by_jti"}

	t.Run("active record with null optionals", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT jti, user_id, device_id, token_hash, issued_at, expires_at")).
			WithArgs("jti-1").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("jti-1", "user-1", "device-1", "hash", now, now.Add(time.Hour), nil, nil, nil))

		rec, err := repo.FindByJTI(context.Background(), "jti-1")
		require.NoError(t, err)
		assert.Equal(t, "jti-1", rec.JTI)
		assert.Nil(t, rec.LastUsedAt)
		assert.Nil(t, rec.RevokedAt)
		assert.Nil(t, rec.ReplacedByJTI)
	})

	t.Run("revoked record", func(t *testing.T) {
		revokedAt := now.Add(-time.Minute)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT jti, user_id, device_id, token_hash, issued_at, expires_at")).
			WithArgs("jti-2").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("jti-2", "user-1", "device-1", "hash", now, now.Add(time.Hour), now, revokedAt, "jti-3"))

		rec, err := repo.FindByJTI(context.Background(), "jti-2")
		require.NoError(t, err)
		assert.True(t, rec.Revoked())
		require.NotNil(t, rec.ReplacedByJTI)
		assert.Equal(t, "jti-3", *rec.ReplacedByJTI)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT jti, user_id, device_id, token_hash, issued_at, expires_at")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := repo.FindByJTI(context.Background(), "missing")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MarkRevoked(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	t.Run("revokes active row", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens")).
			WithArgs("jti-1", now, "jti-2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.MarkRevoked(context.Background(), "jti-1", now, "jti-2")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("already revoked matches nothing", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens")).
			WithArgs("jti-1", now, "jti-3").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.MarkRevoked(context.Background(), "jti-1", now, "jti-3")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_TouchLastUsed(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens")).
		WithArgs("jti-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.TouchLastUsed(context.Background(), "jti-1", at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RevokeByDevice(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens")).
		WithArgs("user-1", "device-1", now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.RevokeByDevice(context.Background(), "user-1", "device-1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RevokeAllForUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens")).
		WithArgs("user-1", now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForUser(context.Background(), "user-1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
