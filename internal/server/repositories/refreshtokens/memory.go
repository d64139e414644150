package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/carelink-app/carelink/internal/common"
	"github.com/carelink-app/carelink/internal/server/models"
)

// MemoryRepository is an in-memory Repository used by tests and local
// development. Records are copied on the way in and out so callers can't
// mutate the store through aliased pointers.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*models.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.RefreshToken)}
}

func (r *MemoryRepository) Create(_ context.Context, rec *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records[rec.JTI] = &cp
	return nil
}

func (r *MemoryRepository) FindByJTI(_ context.Context, jti string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[jti]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) MarkRevoked(_ context.Context, jti string, revokedAt time.Time, replacedByJTI string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[jti]
	if !ok || rec.RevokedAt != nil {
		return false, nil
	}
	rec.RevokedAt = &revokedAt
	if replacedByJTI != "" {
		rec.ReplacedByJTI = &replacedByJTI
	}
	return true, nil
}

func (r *MemoryRepository) TouchLastUsed(_ context.Context, jti string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[jti]
	if !ok {
		return false, nil
	}
	rec.LastUsedAt = &at
	return true, nil
}

func (r *MemoryRepository) RevokeByDevice(_ context.Context, userID, deviceID string, revokedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.UserID == userID && rec.DeviceID == deviceID && rec.RevokedAt == nil {
			at := revokedAt
			rec.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) RevokeAllForUser(_ context.Context, userID string, revokedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.UserID == userID && rec.RevokedAt == nil {
			at := revokedAt
			rec.RevokedAt = &at
			n++
		}
	}
	return n, nil
}
