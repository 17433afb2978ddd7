package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/fleet"
	"villagelink/internal/publisher"
	"villagelink/internal/redis"
	"villagelink/internal/service"
)

// ──────────────────────────────────────────────
// 7. VEHICLE TELEMETRY
// ──────────────────────────────────────────────

const (
	sasaramLat = 24.9490
	sasaramLng = 84.0153
	dehriLat   = 24.9026
	dehriLng   = 84.1822
)

func newVehicleFixture(t *testing.T, store redis.LocationStoreInterface) (*service.VehicleService, *fleet.Hub) {
	t.Helper()
	dir, graph := loadNetwork(t)
	resolver := service.NewRouteResolver(nil, dir, graph, nil, nil, service.RouteResolverConfig{Timeout: time.Second, CorridorWidthSq: 0.0001})
	hub := fleet.NewHub(fleet.Options{})
	t.Cleanup(hub.Close)
	return service.NewVehicleService(hub, store, dir, resolver), hub
}

func TestVehicleRegister_ResolvesPath(t *testing.T) {
	t.Parallel()

	vehicles, _ := newVehicleFixture(t, nil)

	v, err := vehicles.Register(context.Background(), service.RegisterVehicleRequest{
		OperatorID:  "op-1",
		VehicleType: "e-rickshaw",
		Capacity:    6,
		Origin:      "Sasaram",
		Destination: "Dehri-on-Sone",
		Lat:         sasaramLat,
		Lng:         sasaramLng,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(v.Path) < 2 || v.Path[0] != "Sasaram" || v.Path[len(v.Path)-1] != "Dehri-on-Sone" {
		t.Errorf("path = %v", v.Path)
	}
	if !v.Online || v.Status != domain.VehicleStatusIdle || v.SeatsAvailable != 6 {
		t.Errorf("vehicle = %+v", v)
	}
	if v.NearestStop != "Sasaram" {
		t.Errorf("nearest stop = %q, want Sasaram", v.NearestStop)
	}
}

func TestVehicleUpdateLocation_StoresAndBroadcasts(t *testing.T) {
	t.Parallel()

	store := NewMockLocationStore()
	vehicles, hub := newVehicleFixture(t, store)

	sub, err := hub.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	<-sub.Events()

	v, err := vehicles.UpdateLocation(context.Background(), service.UpdateLocationRequest{
		OperatorID:       "op-1",
		Lat:              dehriLat,
		Lng:              dehriLng,
		SpeedKmh:         22,
		Path:             []string{"Sasaram", "Suara", "Dehri-on-Sone"},
		CurrentStopIndex: 1,
		Capacity:         6,
		Occupancy:        4,
	})
	if err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}

	if v.SeatsAvailable != 2 || v.RouteProgress != 0.5 || v.Status != domain.VehicleStatusEnRoute {
		t.Errorf("derived fields = seats %d progress %v status %s", v.SeatsAvailable, v.RouteProgress, v.Status)
	}
	if v.NearestStop != "Dehri-on-Sone" {
		t.Errorf("nearest stop = %q", v.NearestStop)
	}
	if !store.HasLocation("op-1") {
		t.Error("location not indexed")
	}

	select {
	case evt := <-sub.Events():
		if evt.Type != fleet.EventVehicleUpdated || evt.Vehicle == nil || evt.Vehicle.OperatorID != "op-1" {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no vehicle_updated event")
	}
}

func TestVehicleUpdateLocation_FullReplace(t *testing.T) {
	t.Parallel()

	vehicles, _ := newVehicleFixture(t, nil)
	ctx := context.Background()

	if _, err := vehicles.UpdateLocation(ctx, service.UpdateLocationRequest{
		OperatorID: "op-1", OperatorName: "Ravi", Lat: sasaramLat, Lng: sasaramLng,
		Path: []string{"Sasaram", "Dehri-on-Sone"}, Capacity: 4, Occupancy: 1,
	}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if _, err := vehicles.UpdateLocation(ctx, service.UpdateLocationRequest{
		OperatorID: "op-1", Lat: dehriLat, Lng: dehriLng,
	}); err != nil {
		t.Fatalf("second update: %v", err)
	}

	v, ok := vehicles.Get("op-1")
	if !ok {
		t.Fatal("vehicle missing")
	}
	if v.OperatorName != "" || len(v.Path) != 0 || v.Capacity != 0 {
		t.Errorf("stale fields kept: %+v", v)
	}
}

func TestVehicleUpdateLocation_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		req     service.UpdateLocationRequest
		wantErr error
	}{
		{name: "missing operator", req: service.UpdateLocationRequest{Lat: 1, Lng: 1}, wantErr: service.ErrInvalidOperatorID},
		{name: "latitude too high", req: service.UpdateLocationRequest{OperatorID: "op", Lat: 91, Lng: 0}, wantErr: service.ErrInvalidLocation},
		{name: "latitude too low", req: service.UpdateLocationRequest{OperatorID: "op", Lat: -90.5, Lng: 0}, wantErr: service.ErrInvalidLocation},
		{name: "longitude too high", req: service.UpdateLocationRequest{OperatorID: "op", Lat: 0, Lng: 180.1}, wantErr: service.ErrInvalidLocation},
		{name: "negative occupancy", req: service.UpdateLocationRequest{OperatorID: "op", Lat: 0, Lng: 0, Occupancy: -1}, wantErr: service.ErrInvalidPassengerCount},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := NewMockLocationStore()
			vehicles, hub := newVehicleFixture(t, store)
			if _, err := vehicles.UpdateLocation(context.Background(), tc.req); !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
			if len(hub.Vehicles()) != 0 || atomic.LoadInt32(&store.UpdateLocationCallCount) != 0 {
				t.Error("invalid update reached the registry")
			}
		})
	}
}

func TestVehicleUpdateLocation_IndexFailureIsTolerated(t *testing.T) {
	t.Parallel()

	store := NewMockLocationStore()
	store.UpdateLocationError = errors.New("redis timeout")
	vehicles, hub := newVehicleFixture(t, store)

	if _, err := vehicles.UpdateLocation(context.Background(), service.UpdateLocationRequest{OperatorID: "op-1", Lat: sasaramLat, Lng: sasaramLng}); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if _, ok := hub.Vehicle("op-1"); !ok {
		t.Error("hub did not store the vehicle")
	}
}

func TestVehicleDisconnect(t *testing.T) {
	t.Parallel()

	store := NewMockLocationStore()
	vehicles, _ := newVehicleFixture(t, store)
	ctx := context.Background()

	if _, err := vehicles.UpdateLocation(ctx, service.UpdateLocationRequest{OperatorID: "op-1", Lat: sasaramLat, Lng: sasaramLng}); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}

	known, err := vehicles.Disconnect(ctx, "op-1")
	if err != nil || !known {
		t.Fatalf("Disconnect = %v, %v", known, err)
	}
	if _, ok := vehicles.Get("op-1"); ok {
		t.Error("vehicle still listed")
	}
	if store.HasLocation("op-1") {
		t.Error("location still indexed")
	}

	known, err = vehicles.Disconnect(ctx, "op-1")
	if err != nil || known {
		t.Errorf("second Disconnect = %v, %v", known, err)
	}
}

func TestVehicleNearby(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		store func() redis.LocationStoreInterface
	}{
		{name: "hub scan", store: func() redis.LocationStoreInterface { return nil }},
		{name: "index failure falls back to scan", store: func() redis.LocationStoreInterface {
			s := NewMockLocationStore()
			s.FindNearbyError = errors.New("redis down")
			return s
		}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			vehicles, _ := newVehicleFixture(t, tc.store())
			ctx := context.Background()
			for id, loc := range map[string][2]float64{
				"near": {sasaramLat + 0.01, sasaramLng},
				"here": {sasaramLat, sasaramLng},
				"far":  {dehriLat, dehriLng},
			} {
				if _, err := vehicles.UpdateLocation(ctx, service.UpdateLocationRequest{OperatorID: id, Lat: loc[0], Lng: loc[1]}); err != nil {
					t.Fatalf("UpdateLocation(%s): %v", id, err)
				}
			}

			got, err := vehicles.Nearby(ctx, sasaramLat, sasaramLng, 5)
			if err != nil {
				t.Fatalf("Nearby: %v", err)
			}
			if len(got) != 2 || got[0].Vehicle.OperatorID != "here" || got[1].Vehicle.OperatorID != "near" {
				t.Errorf("nearby = %+v", got)
			}
		})
	}
}

func TestVehicleNearby_UsesIndex(t *testing.T) {
	t.Parallel()

	store := NewMockLocationStore()
	vehicles, _ := newVehicleFixture(t, store)
	ctx := context.Background()

	if _, err := vehicles.UpdateLocation(ctx, service.UpdateLocationRequest{OperatorID: "op-1", Lat: sasaramLat, Lng: sasaramLng}); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	// Indexed by another replica, unknown to this hub.
	if err := store.UpdateLocation(ctx, "op-remote", sasaramLat, sasaramLng); err != nil {
		t.Fatalf("index: %v", err)
	}

	got, err := vehicles.Nearby(ctx, sasaramLat, sasaramLng, 5)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 1 || got[0].Vehicle.OperatorID != "op-1" {
		t.Errorf("nearby = %+v", got)
	}
}

func TestVehicleIngestTelemetry(t *testing.T) {
	t.Parallel()

	vehicles, _ := newVehicleFixture(t, nil)
	ctx := context.Background()
	ts := time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)

	err := vehicles.IngestTelemetry(ctx, publisher.TelemetryMessage{
		OperatorID:  "op-9",
		Lat:         sasaramLat,
		Lng:         sasaramLng,
		Status:      string(domain.VehicleStatusDelayed),
		TimestampMs: ts.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("IngestTelemetry: %v", err)
	}

	v, ok := vehicles.Get("op-9")
	if !ok {
		t.Fatal("vehicle missing")
	}
	if v.Status != domain.VehicleStatusDelayed || !v.Location.Timestamp.Equal(ts) {
		t.Errorf("vehicle = %+v", v)
	}

	if err := vehicles.EndTelemetry(ctx, "op-9"); err != nil {
		t.Fatalf("EndTelemetry: %v", err)
	}
	if _, ok := vehicles.Get("op-9"); ok {
		t.Error("vehicle still online after end of stream")
	}
}
