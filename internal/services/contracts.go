package services

import (
	"context"

	"github.com/tbourn/carlog-backend/internal/domain"
)

// UserRepository is the user persistence the reminder pipeline needs.
type UserRepository interface {
	// GetActiveUsers returns every user whose account is active.
	GetActiveUsers(ctx context.Context) ([]domain.User, error)
	// UpdateUser applies a partial update and returns the fresh user.
	// Returns ErrUserNotFound for an unknown id.
	UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error)
}

// VehicleRepository is the vehicle and maintenance history persistence.
type VehicleRepository interface {
	GetUserVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error)
	// GetVehicle returns ErrVehicleNotFound for an unknown id.
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
	// ListMaintenance returns the history newest service first.
	ListMaintenance(ctx context.Context, vehicleID string) ([]domain.MaintenanceRecord, error)
}

// RecommendationStore persists recommendation cache entries.
type RecommendationStore interface {
	// LatestRecommendation returns the newest entry matching fp exactly, or
	// (nil, nil) on a miss.
	LatestRecommendation(ctx context.Context, vehicleID string, fp domain.Fingerprint) (*domain.RecommendationCacheEntry, error)
	CreateRecommendation(ctx context.Context, e *domain.RecommendationCacheEntry) error
}

// AuditLog is the append-only trail of recommendation provider calls.
type AuditLog interface {
	Append(ctx context.Context, l domain.RecommendationLog) error
}

// SMSSender delivers a text message and returns the provider's delivery id.
type SMSSender interface {
	Send(ctx context.Context, phone, text string) (string, error)
}

// EmailSender delivers an email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Computation is the outcome of one recommendation provider call.
type Computation struct {
	Text        string
	Prompt      string
	RawResponse string
	Model       string
	TokensUsed  *int
}

// RecommendationProvider generates maintenance recommendations for a vehicle
// from its history.
type RecommendationProvider interface {
	Compute(ctx context.Context, v domain.Vehicle, history []domain.MaintenanceRecord) (Computation, error)
}
