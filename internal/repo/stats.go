// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for the
// recommendation fingerprint and for conditional responses (ETag generation)
// in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/carlog-backend/internal/domain"
)

// MaintenanceStats returns the number of maintenance records for a vehicle
// and the most recent service date among them (nil when there are none).
func MaintenanceStats(ctx context.Context, db *gorm.DB, vehicleID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.MaintenanceRecord{}).Where("vehicle_id = ?", vehicleID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest service_date (avoid MAX() -> TEXT in SQLite)
	var row struct {
		ServiceDate time.Time
	}
	if err = q.Select("service_date").Order("service_date DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.ServiceDate, nil
}

// RecommendationLogStats returns the size of the audit trail and the newest
// CreatedAt, or (0, nil) when empty.
func RecommendationLogStats(ctx context.Context, db *gorm.DB) (count int64, newest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.RecommendationLog{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
