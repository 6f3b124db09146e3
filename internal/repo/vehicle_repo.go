package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/carlog-backend/internal/domain"
)

// CreateVehicle inserts v, assigning an ID and timestamps when missing.
func CreateVehicle(ctx context.Context, db *gorm.DB, v *domain.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	return db.WithContext(ctx).Omit("Owner").Create(v).Error
}

// GetVehicle fetches a vehicle by ID, or ErrNotFound.
func GetVehicle(ctx context.Context, db *gorm.DB, id string) (*domain.Vehicle, error) {
	var v domain.Vehicle
	if err := db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// ListUserVehicles returns the vehicles owned by ownerID, oldest first.
func ListUserVehicles(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Vehicle, error) {
	var out []domain.Vehicle
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// CreateMaintenance inserts a maintenance record for an existing vehicle.
func CreateMaintenance(ctx context.Context, db *gorm.DB, r *domain.MaintenanceRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Omit("Vehicle").Create(r).Error
}

// ListMaintenance returns a vehicle's history, newest service first.
func ListMaintenance(ctx context.Context, db *gorm.DB, vehicleID string) ([]domain.MaintenanceRecord, error) {
	var out []domain.MaintenanceRecord
	err := db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("service_date DESC").
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
