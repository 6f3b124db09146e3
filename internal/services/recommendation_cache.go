// Package services – RecommendationCache
//
// RecommendationCache returns a stored recommendation for a vehicle while its
// fingerprint (mileage, maintenance count) is unchanged and computes a fresh
// one otherwise. Lookups and create-on-miss for one vehicle are serialized,
// and concurrent callers asking for the same fingerprint share a single
// computation, so at most one provider call runs per fingerprint.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/carlog-backend/internal/domain"
	"github.com/tbourn/carlog-backend/internal/observability"
)

// ComputeFunc produces a recommendation on a cache miss.
type ComputeFunc func(ctx context.Context) (Computation, error)

// DefaultComputeTimeout bounds a shared lookup-and-compute when
// RecommendationCache.Timeout is unset.
const DefaultComputeTimeout = 2 * time.Minute

// RecommendationCache is the fingerprint-keyed cache in front of the
// recommendation provider.
type RecommendationCache struct {
	Store RecommendationStore
	Audit AuditLog
	Now   func() time.Time
	Log   *zerolog.Logger
	// Timeout bounds the shared computation, which does not follow any
	// single caller's cancellation.
	Timeout time.Duration

	group singleflight.Group

	mu    sync.Mutex
	locks map[string]*vehicleLock
}

// vehicleLock serializes lookup and create-on-miss for one vehicle. refs
// counts holders and waiters; the entry is dropped when it reaches zero.
type vehicleLock struct {
	mu   sync.Mutex
	refs int
}

// NewRecommendationCache wires a cache over store; audit may be nil.
func NewRecommendationCache(store RecommendationStore, audit AuditLog) *RecommendationCache {
	return &RecommendationCache{Store: store, Audit: audit}
}

type cacheResult struct {
	text   string
	cached bool
}

func (c *RecommendationCache) logger() *zerolog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return &log.Logger
}

func (c *RecommendationCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *RecommendationCache) lockVehicle(vehicleID string) (unlock func()) {
	c.mu.Lock()
	if c.locks == nil {
		c.locks = make(map[string]*vehicleLock)
	}
	vl := c.locks[vehicleID]
	if vl == nil {
		vl = &vehicleLock{}
		c.locks[vehicleID] = vl
	}
	vl.refs++
	c.mu.Unlock()

	vl.mu.Lock()
	return func() {
		vl.mu.Unlock()
		c.mu.Lock()
		if vl.refs--; vl.refs == 0 {
			delete(c.locks, vehicleID)
		}
		c.mu.Unlock()
	}
}

func (c *RecommendationCache) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultComputeTimeout
}

// GetOrCompute returns the newest stored text for (vehicleID, fp) with
// cached=true, or invokes compute, stores the result and returns it with
// cached=false. Compute errors are wrapped in ErrComputeFailed and nothing is
// stored. If ctx is done first, ctx.Err() is returned while the computation
// carries on for other callers and the cache.
func (c *RecommendationCache) GetOrCompute(ctx context.Context, vehicleID string, fp domain.Fingerprint, compute ComputeFunc) (string, bool, error) {
	ctx, span := otel.Tracer("services/RecommendationCache").Start(ctx, "GetOrCompute",
		trace.WithAttributes(
			attribute.String("vehicle.id", vehicleID),
			attribute.Int("fingerprint.mileage", fp.Mileage),
			attribute.Int("fingerprint.maintenance_count", fp.MaintenanceCount),
		),
	)
	defer span.End()

	key := vehicleID + "|" + fp.String()
	ch := c.group.DoChan(key, func() (any, error) {
		// Detached from the first caller; bounded by c.timeout.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout())
		defer cancel()
		unlock := c.lockVehicle(vehicleID)
		defer unlock()
		return c.lookupOrCompute(wctx, vehicleID, fp, compute)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return "", false, ctx.Err()
	}
	span.SetAttributes(attribute.Bool("singleflight.shared", res.Shared))
	if res.Err != nil {
		span.RecordError(res.Err)
		return "", false, res.Err
	}
	v := res.Val
	r := v.(cacheResult)
	span.SetAttributes(attribute.Bool("cache.hit", r.cached))
	return r.text, r.cached, nil
}

func (c *RecommendationCache) lookupOrCompute(ctx context.Context, vehicleID string, fp domain.Fingerprint, compute ComputeFunc) (cacheResult, error) {
	l := c.logger().With().Str("vehicle_id", vehicleID).Str("fingerprint", fp.String()).Logger()

	entry, err := c.Store.LatestRecommendation(ctx, vehicleID, fp)
	switch {
	case err != nil:
		observability.RecommendationLookups.WithLabelValues("error").Inc()
		l.Warn().Err(err).Msg("recommendation lookup failed; computing")
	case entry != nil:
		observability.RecommendationLookups.WithLabelValues("hit").Inc()
		return cacheResult{text: entry.RecommendationText, cached: true}, nil
	default:
		observability.RecommendationLookups.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	comp, cerr := compute(ctx)
	observability.RecommendationCompute.Observe(time.Since(start).Seconds())
	c.audit(ctx, l, vehicleID, comp)
	if cerr != nil {
		return cacheResult{}, fmt.Errorf("%w: %w", ErrComputeFailed, cerr)
	}

	e := &domain.RecommendationCacheEntry{
		VehicleID:                    vehicleID,
		RecommendationText:           comp.Text,
		MileageAtGeneration:          fp.Mileage,
		MaintenanceCountAtGeneration: fp.MaintenanceCount,
		CreatedAt:                    c.now(),
	}
	if err := c.Store.CreateRecommendation(ctx, e); err != nil {
		l.Error().Err(err).Msg("recommendation computed but not cached")
	}
	return cacheResult{text: comp.Text}, nil
}

// audit appends the provider call to the trail. Failures are logged only.
func (c *RecommendationCache) audit(ctx context.Context, l zerolog.Logger, vehicleID string, comp Computation) {
	// Nothing reached the provider.
	if c.Audit == nil || (comp.Prompt == "" && comp.RawResponse == "") {
		return
	}
	entry := domain.RecommendationLog{
		VehicleID:     vehicleID,
		RequestPrompt: comp.Prompt,
		ResponseText:  comp.RawResponse,
		ModelUsed:     comp.Model,
		TokensUsed:    comp.TokensUsed,
		CreatedAt:     c.now(),
	}
	if err := c.Audit.Append(ctx, entry); err != nil {
		l.Warn().Err(err).Msg("recommendation audit append failed")
	}
}
