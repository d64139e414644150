package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carelink-app/carelink/internal/common"
	"github.com/carelink-app/carelink/internal/dbx"
	"github.com/carelink-app/carelink/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (jti, user_id, device_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		rec.JTI, rec.UserID, rec.DeviceID, rec.TokenHash, rec.IssuedAt, rec.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	query := `
		SELECT jti, user_id, device_id, token_hash, issued_at, expires_at,
		       last_used_at, revoked_at, replaced_by_jti
		FROM refresh_tokens
		WHERE jti = $1
	`
	rec := &models.RefreshToken{}
	var lastUsedAt, revokedAt sql.NullTime
	var replacedBy sql.NullString

	err := r.db.QueryRowContext(ctx, query, jti).Scan(
		&rec.JTI, &rec.UserID, &rec.DeviceID, &rec.TokenHash,
		&rec.IssuedAt, &rec.ExpiresAt, &lastUsedAt, &revokedAt, &replacedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lastUsedAt.Valid {
		rec.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	if replacedBy.Valid {
		rec.ReplacedByJTI = &replacedBy.String
	}
	return rec, nil
}

// MarkRevoked only touches unrevoked rows, which is what makes it
// idempotent: the second call matches nothing and returns false.
func (r *PostgresRepository) MarkRevoked(ctx context.Context, jti string, revokedAt time.Time, replacedByJTI string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, replaced_by_jti = NULLIF($3, '')::uuid
		WHERE jti = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, jti, revokedAt, replacedByJTI)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) TouchLastUsed(ctx context.Context, jti string, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET last_used_at = $2
		WHERE jti = $1
	`
	res, err := r.db.ExecContext(ctx, query, jti, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) RevokeByDevice(ctx context.Context, userID, deviceID string, revokedAt time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $3
		WHERE user_id = $1 AND device_id = $2 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID, deviceID, revokedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID, revokedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
