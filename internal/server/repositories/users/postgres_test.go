package users

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

func TestPostgres_GetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	cols := []string{"id", "email", "password_hash", "role", "is_active", "created_at"}

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, COALESCE(password_hash, ''), role, is_active, created_at")).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("user-1", "alice@example.com", "$argon2id$...", "caregiver", true, now))

		u, err := repo.GetByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "user-1", u.ID)
		assert.Equal(t, "caregiver", u.Role)
		assert.True(t, u.IsActive)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, COALESCE(password_hash, ''), role, is_active, created_at")).
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	cols := []string{"id", "email", "password_hash", "role", "is_active", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, COALESCE(password_hash, ''), role, is_active, created_at")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("user-1", "alice@example.com", "", "caregiver", false, now))

	u, err := repo.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, u.PasswordHash)
	assert.False(t, u.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
