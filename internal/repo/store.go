package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/carlog-backend/internal/domain"
	"github.com/tbourn/carlog-backend/internal/services"
)

// Store adapts the free repository functions to the service contracts and
// translates gorm not-found errors into service sentinels.
type Store struct {
	DB *gorm.DB
}

// NewStore wraps db.
func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

var (
	_ services.UserRepository      = (*Store)(nil)
	_ services.VehicleRepository   = (*Store)(nil)
	_ services.RecommendationStore = (*Store)(nil)
	_ services.AuditLog            = (*Store)(nil)
)

func (s *Store) GetActiveUsers(ctx context.Context) ([]domain.User, error) {
	return ListActiveUsers(ctx, s.DB)
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	u, err := UpdateUserFields(ctx, s.DB, id, upd)
	if errors.Is(err, ErrNotFound) {
		return nil, services.ErrUserNotFound
	}
	return u, err
}

func (s *Store) GetUserVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error) {
	return ListUserVehicles(ctx, s.DB, userID)
}

func (s *Store) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	v, err := GetVehicle(ctx, s.DB, id)
	if errors.Is(err, ErrNotFound) {
		return nil, services.ErrVehicleNotFound
	}
	return v, err
}

func (s *Store) ListMaintenance(ctx context.Context, vehicleID string) ([]domain.MaintenanceRecord, error) {
	return ListMaintenance(ctx, s.DB, vehicleID)
}

func (s *Store) LatestRecommendation(ctx context.Context, vehicleID string, fp domain.Fingerprint) (*domain.RecommendationCacheEntry, error) {
	return LatestRecommendation(ctx, s.DB, vehicleID, fp)
}

func (s *Store) CreateRecommendation(ctx context.Context, e *domain.RecommendationCacheEntry) error {
	return CreateRecommendation(ctx, s.DB, e)
}

// Append writes one audit row.
func (s *Store) Append(ctx context.Context, l domain.RecommendationLog) error {
	return AppendRecommendationLog(ctx, s.DB, &l)
}

// ListLogsPage returns a page of the audit trail, newest first, plus the
// total row count.
func (s *Store) ListLogsPage(ctx context.Context, offset, limit int) ([]domain.RecommendationLog, int64, error) {
	total, err := CountRecommendationLogs(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.RecommendationLog{}, 0, nil
	}
	items, err := ListRecommendationLogsPage(ctx, s.DB, offset, limit)
	return items, total, err
}

// LogStats reports the audit trail size and newest entry time.
func (s *Store) LogStats(ctx context.Context) (int64, *time.Time, error) {
	return RecommendationLogStats(ctx, s.DB)
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
