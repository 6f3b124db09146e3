package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/tbourn/carlog-backend/internal/domain"
	"github.com/tbourn/carlog-backend/internal/services"
)

// Store implements the service repositories over a Client.
type Store struct {
	c *Client
}

// NewStore wraps c.
func NewStore(c *Client) *Store { return &Store{c: c} }

var (
	_ services.UserRepository      = (*Store)(nil)
	_ services.VehicleRepository   = (*Store)(nil)
	_ services.RecommendationStore = (*Store)(nil)
	_ services.AuditLog            = (*Store)(nil)
)

// collect runs a read query and decodes the node bound to key in every row.
func collect[T any](ctx context.Context, s *Store, cypher string, params map[string]any, key string, decode func(map[string]any) T) ([]T, error) {
	session := s.c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]T, 0, len(recs))
		for _, rec := range recs {
			raw, ok := rec.Get(key)
			if !ok {
				return nil, fmt.Errorf("graph: column %q missing", key)
			}
			node, ok := raw.(neo4j.Node)
			if !ok {
				return nil, fmt.Errorf("graph: column %q is %T, want node", key, raw)
			}
			items = append(items, decode(node.Props))
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]T), nil
}

// write runs cypher in a write transaction and returns the number of rows.
func (s *Store) write(ctx context.Context, cypher string, params map[string]any) (int, error) {
	session := s.c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	n, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return 0, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return 0, err
		}
		return len(recs), nil
	})
	if err != nil {
		return 0, err
	}
	return n.(int), nil
}

// CreateUser stores u, assigning an id and timestamps when unset.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := s.write(ctx, `CREATE (u:User) SET u = $props RETURN u`, map[string]any{"props": userParams(*u)})
	return err
}

// CreateVehicle stores v and links it to its owner.
func (s *Store) CreateVehicle(ctx context.Context, v *domain.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	n, err := s.write(ctx, `
MATCH (u:User {id: $owner_id})
CREATE (u)-[:OWNS]->(v:Vehicle)
SET v = $props
RETURN v`, map[string]any{"owner_id": v.OwnerID, "props": vehicleParams(*v)})
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrUserNotFound
	}
	return nil
}

// CreateMaintenance stores m under its vehicle.
func (s *Store) CreateMaintenance(ctx context.Context, m *domain.MaintenanceRecord) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	n, err := s.write(ctx, `
MATCH (v:Vehicle {id: $vehicle_id})
CREATE (v)-[:HAS_MAINTENANCE]->(m:Maintenance)
SET m = $props
RETURN m`, map[string]any{
		"vehicle_id": m.VehicleID,
		"props": map[string]any{
			"id":               m.ID,
			"vehicle_id":       m.VehicleID,
			"service_type":     m.ServiceType,
			"mileage":          int64(m.Mileage),
			"service_date":     fmtTime(m.ServiceDate),
			"description":      m.Description,
			"cost":             floatPtrParam(m.Cost),
			"service_provider": m.ServiceProvider,
			"created_at":       fmtTime(m.CreatedAt),
		},
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrVehicleNotFound
	}
	return nil
}

func (s *Store) GetActiveUsers(ctx context.Context) ([]domain.User, error) {
	return collect(ctx, s, `
MATCH (u:User)
WHERE u.account_active = true
RETURN u
ORDER BY u.created_at ASC`, nil, "u", decodeUser)
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	fields, err := upd.Fields()
	if err != nil {
		return nil, err
	}
	props := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("graph: unsupported update value for %s", k)
		}
		props[k] = fmtTime(t)
	}
	props["updated_at"] = fmtTime(time.Now())

	session := s.c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (u:User {id: $id}) SET u += $props RETURN u`, map[string]any{"id": id, "props": props})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, services.ErrUserNotFound
		}
		raw, _ := recs[0].Get("u")
		node, ok := raw.(neo4j.Node)
		if !ok {
			return nil, errors.New("graph: user node missing")
		}
		u := decodeUser(node.Props)
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*domain.User), nil
}

func (s *Store) GetUserVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error) {
	return collect(ctx, s, `
MATCH (:User {id: $user_id})-[:OWNS]->(v:Vehicle)
RETURN v
ORDER BY v.created_at ASC`, map[string]any{"user_id": userID}, "v", decodeVehicle)
}

func (s *Store) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	vs, err := collect(ctx, s, `MATCH (v:Vehicle {id: $id}) RETURN v`, map[string]any{"id": id}, "v", decodeVehicle)
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, services.ErrVehicleNotFound
	}
	return &vs[0], nil
}

func (s *Store) ListMaintenance(ctx context.Context, vehicleID string) ([]domain.MaintenanceRecord, error) {
	return collect(ctx, s, `
MATCH (:Vehicle {id: $vehicle_id})-[:HAS_MAINTENANCE]->(m:Maintenance)
RETURN m
ORDER BY m.service_date DESC, m.created_at DESC`, map[string]any{"vehicle_id": vehicleID}, "m", decodeMaintenance)
}

func (s *Store) LatestRecommendation(ctx context.Context, vehicleID string, fp domain.Fingerprint) (*domain.RecommendationCacheEntry, error) {
	rs, err := collect(ctx, s, `
MATCH (r:Recommendation {vehicle_id: $vehicle_id})
WHERE r.mileage_at_generation = $mileage AND r.maintenance_count_at_generation = $count
RETURN r
ORDER BY r.created_at DESC
LIMIT 1`, map[string]any{
		"vehicle_id": vehicleID,
		"mileage":    int64(fp.Mileage),
		"count":      int64(fp.MaintenanceCount),
	}, "r", decodeRecommendation)
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

func (s *Store) CreateRecommendation(ctx context.Context, e *domain.RecommendationCacheEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	n, err := s.write(ctx, `
MATCH (v:Vehicle {id: $vehicle_id})
CREATE (v)-[:HAS_RECOMMENDATION]->(r:Recommendation)
SET r = $props
RETURN r`, map[string]any{
		"vehicle_id": e.VehicleID,
		"props": map[string]any{
			"id":                              e.ID,
			"vehicle_id":                      e.VehicleID,
			"recommendation_text":             e.RecommendationText,
			"mileage_at_generation":           int64(e.MileageAtGeneration),
			"maintenance_count_at_generation": int64(e.MaintenanceCountAtGeneration),
			"created_at":                      fmtTime(e.CreatedAt),
		},
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrVehicleNotFound
	}
	return nil
}

// Append writes one audit node. Audit entries are not linked to the vehicle
// so they survive vehicle deletion.
func (s *Store) Append(ctx context.Context, l domain.RecommendationLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.write(ctx, `CREATE (l:RecommendationLog) SET l = $props RETURN l`, map[string]any{
		"props": map[string]any{
			"id":             l.ID,
			"vehicle_id":     l.VehicleID,
			"request_prompt": l.RequestPrompt,
			"response_text":  l.ResponseText,
			"model_used":     l.ModelUsed,
			"tokens_used":    intPtrParam(l.TokensUsed),
			"created_at":     fmtTime(l.CreatedAt),
		},
	})
	return err
}

// ListLogsPage returns a page of the audit trail, newest first, plus the
// total count.
func (s *Store) ListLogsPage(ctx context.Context, offset, limit int) ([]domain.RecommendationLog, int64, error) {
	total, _, err := s.LogStats(ctx)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.RecommendationLog{}, 0, nil
	}
	items, err := collect(ctx, s, `
MATCH (l:RecommendationLog)
RETURN l
ORDER BY l.created_at DESC, l.id DESC
SKIP $offset LIMIT $limit`, map[string]any{"offset": int64(offset), "limit": int64(limit)}, "l", decodeLog)
	return items, total, err
}

// LogStats reports the audit trail size and newest entry time.
func (s *Store) LogStats(ctx context.Context) (int64, *time.Time, error) {
	session := s.c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (l:RecommendationLog) RETURN count(l) AS n, max(l.created_at) AS newest`, nil)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return rec.AsMap(), nil
	})
	if err != nil {
		return 0, nil, err
	}
	m := out.(map[string]any)
	return int64(integer(m, "n")), timePtr(m, "newest"), nil
}

// Ping verifies the driver can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	return s.c.Driver.VerifyConnectivity(ctx)
}
