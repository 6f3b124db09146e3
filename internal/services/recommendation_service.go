package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/carlog-backend/internal/domain"
)

// Recommendation is the read-path result for one vehicle.
type Recommendation struct {
	Text        string             `json:"recommendations"`
	Cached      bool               `json:"cached"`
	Fingerprint domain.Fingerprint `json:"fingerprint"`
}

// RecommendationService loads a vehicle and its history, derives the
// fingerprint and answers from the cache or the provider.
type RecommendationService struct {
	Vehicles VehicleRepository
	Cache    *RecommendationCache
	Provider RecommendationProvider
}

// NewRecommendationService wires the read path.
func NewRecommendationService(vehicles VehicleRepository, cache *RecommendationCache, p RecommendationProvider) *RecommendationService {
	return &RecommendationService{Vehicles: vehicles, Cache: cache, Provider: p}
}

// ForVehicle returns recommendations for vehicleID if it is owned by
// ownerID. Vehicles owned by someone else are reported as ErrVehicleNotFound.
func (s *RecommendationService) ForVehicle(ctx context.Context, ownerID, vehicleID string) (*Recommendation, error) {
	ctx, span := otel.Tracer("services/RecommendationService").Start(ctx, "ForVehicle",
		trace.WithAttributes(
			attribute.String("vehicle.id", vehicleID),
			attribute.String("user.id", ownerID),
		),
	)
	defer span.End()

	v, err := s.Vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if v.OwnerID != ownerID {
		return nil, ErrVehicleNotFound
	}
	history, err := s.Vehicles.ListMaintenance(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	fp := domain.Fingerprint{Mileage: v.Mileage(), MaintenanceCount: len(history)}
	// Without a provider a stored answer is still served; a miss fails.
	compute := func(ctx context.Context) (Computation, error) {
		if s.Provider == nil {
			return Computation{}, ErrNoRecommendationProvider
		}
		return s.Provider.Compute(ctx, *v, history)
	}

	text, cached, err := s.Cache.GetOrCompute(ctx, vehicleID, fp, compute)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &Recommendation{Text: text, Cached: cached, Fingerprint: fp}, nil
}
