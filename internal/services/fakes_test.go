package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tbourn/carlog-backend/internal/domain"
)

// memStore is an in-memory UserRepository + VehicleRepository +
// RecommendationStore + AuditLog.
type memStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	vehicles map[string][]domain.Vehicle // by owner
	history  map[string][]domain.MaintenanceRecord
	recs     []domain.RecommendationCacheEntry
	logs     []domain.RecommendationLog

	activeErr  error
	updateErr  error
	vehicleErr error
	createErr  error
	lookupErr  error
	appendErr  error
	updates    int
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]domain.User{},
		vehicles: map[string][]domain.Vehicle{},
		history:  map[string][]domain.MaintenanceRecord{},
	}
}

func (m *memStore) addUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.AccountActive = true
	m.users[u.ID] = u
}

func (m *memStore) addVehicle(v domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.OwnerID] = append(m.vehicles[v.OwnerID], v)
}

func (m *memStore) user(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memStore) GetActiveUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if u.AccountActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if _, err := upd.Fields(); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	upd.Apply(&u)
	m.users[id] = u
	m.updates++
	return &u, nil
}

func (m *memStore) GetUserVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vehicleErr != nil {
		return nil, m.vehicleErr
	}
	return append([]domain.Vehicle(nil), m.vehicles[userID]...), nil
}

func (m *memStore) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vs := range m.vehicles {
		for _, v := range vs {
			if v.ID == id {
				v := v
				return &v, nil
			}
		}
	}
	return nil, ErrVehicleNotFound
}

func (m *memStore) ListMaintenance(ctx context.Context, vehicleID string) ([]domain.MaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MaintenanceRecord(nil), m.history[vehicleID]...), nil
}

func (m *memStore) LatestRecommendation(ctx context.Context, vehicleID string, fp domain.Fingerprint) (*domain.RecommendationCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	var best *domain.RecommendationCacheEntry
	for i := range m.recs {
		e := m.recs[i]
		if e.VehicleID != vehicleID || e.Fingerprint() != fp {
			continue
		}
		if best == nil || !e.CreatedAt.Before(best.CreatedAt) {
			best = &e
		}
	}
	return best, nil
}

func (m *memStore) CreateRecommendation(ctx context.Context, e *domain.RecommendationCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.recs = append(m.recs, *e)
	return nil
}

func (m *memStore) Append(ctx context.Context, l domain.RecommendationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.logs = append(m.logs, l)
	return nil
}

// fakeSMS records sends and fails for numbers listed in failFor.
type fakeSMS struct {
	mu      sync.Mutex
	sent    []string // phone numbers
	texts   []string
	failFor map[string]bool
	panicOn string
}

func (f *fakeSMS) Send(ctx context.Context, phone, text string) (string, error) {
	if f.panicOn != "" && phone == f.panicOn {
		panic("sender exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[phone] {
		return "", errors.New("twilio 500")
	}
	f.sent = append(f.sent, phone)
	f.texts = append(f.texts, text)
	return "SM" + phone, nil
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeEmail returns err for every send.
type fakeEmail struct {
	err   error
	calls int
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, body string) error {
	f.calls++
	return f.err
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}
