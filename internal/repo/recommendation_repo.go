package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/carlog-backend/internal/domain"
)

// LatestRecommendation returns the newest cache entry for vehicleID whose
// fingerprint matches fp exactly. A miss is reported as (nil, nil).
func LatestRecommendation(ctx context.Context, db *gorm.DB, vehicleID string, fp domain.Fingerprint) (*domain.RecommendationCacheEntry, error) {
	var e domain.RecommendationCacheEntry
	err := db.WithContext(ctx).
		Where("vehicle_id = ? AND mileage_at_generation = ? AND maintenance_count_at_generation = ?",
			vehicleID, fp.Mileage, fp.MaintenanceCount).
		Order("created_at DESC").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateRecommendation appends a cache entry. Existing entries are never
// updated.
func CreateRecommendation(ctx context.Context, db *gorm.DB, e *domain.RecommendationCacheEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(e).Error
}

// AppendRecommendationLog writes one audit row for a provider call.
func AppendRecommendationLog(ctx context.Context, db *gorm.DB, l *domain.RecommendationLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(l).Error
}

// CountRecommendationLogs returns the size of the audit trail.
func CountRecommendationLogs(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.RecommendationLog{}).Count(&n).Error
	return n, err
}

// ListRecommendationLogsPage returns a page of audit rows, newest first.
func ListRecommendationLogsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.RecommendationLog, error) {
	var out []domain.RecommendationLog
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
