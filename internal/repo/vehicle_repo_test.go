package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/carlog-backend/internal/domain"
)

func TestCreateVehicle_AndGet(t *testing.T) {
	db := newTestDB(t, allModels...)
	seedVehicle(t, db, "u1", "v1")

	v, err := GetVehicle(context.Background(), db, "v1")
	if err != nil {
		t.Fatalf("GetVehicle: %v", err)
	}
	if v.OwnerID != "u1" || v.DisplayName() != "2019 Honda Civic" || v.CreatedAt.IsZero() {
		t.Fatalf("unexpected vehicle: %+v", v)
	}
	if _, err := GetVehicle(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUserVehicles_ScopedToOwner(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()
	seedVehicle(t, db, "u1", "v1")
	seedVehicle(t, db, "u2", "v2")
	if err := CreateVehicle(ctx, db, &domain.Vehicle{ID: "v3", OwnerID: "u1", Brand: "Ford", Model: "F-150", Year: 2021}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := ListUserVehicles(ctx, db, "u1")
	if err != nil {
		t.Fatalf("ListUserVehicles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 vehicles for u1, got %d", len(got))
	}
	for _, v := range got {
		if v.OwnerID != "u1" {
			t.Fatalf("leaked vehicle of %s", v.OwnerID)
		}
	}
}

func TestListMaintenance_NewestFirst(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()
	seedVehicle(t, db, "u1", "v1")

	old := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	for _, d := range []time.Time{mid, recent, old} {
		if err := CreateMaintenance(ctx, db, &domain.MaintenanceRecord{VehicleID: "v1", ServiceType: "oil", Mileage: 1, ServiceDate: d}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := ListMaintenance(ctx, db, "v1")
	if err != nil {
		t.Fatalf("ListMaintenance: %v", err)
	}
	if len(got) != 3 || !got[0].ServiceDate.Equal(recent) || !got[2].ServiceDate.Equal(old) {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].ID == "" {
		t.Fatalf("ID should be assigned")
	}
}
