package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/geo"
	"villagelink/internal/publisher"
	"villagelink/internal/redis"
	"villagelink/internal/stops"
)

// VehicleHub stores live vehicle state and broadcasts changes.
type VehicleHub interface {
	Register(ctx context.Context, state domain.VehicleState) (domain.VehicleState, error)
	UpdateLocation(ctx context.Context, state domain.VehicleState) (domain.VehicleState, error)
	Disconnect(ctx context.Context, operatorID string) bool
	Vehicle(operatorID string) (domain.VehicleState, bool)
	Vehicles() []domain.VehicleState
}

// StopLocator finds the stop closest to a point.
type StopLocator interface {
	Nearest(lat, lng float64) (stops.NearbyStop, bool)
}

// VehicleService handles operator telemetry.
type VehicleService struct {
	hub           VehicleHub
	locationStore redis.LocationStoreInterface
	stops         StopLocator
	resolver      *RouteResolver
}

// NewVehicleService creates a new VehicleService. locationStore may be nil.
func NewVehicleService(
	hub VehicleHub,
	locationStore redis.LocationStoreInterface,
	stopLocator StopLocator,
	resolver *RouteResolver,
) *VehicleService {
	return &VehicleService{
		hub:           hub,
		locationStore: locationStore,
		stops:         stopLocator,
		resolver:      resolver,
	}
}

// RegisterVehicleRequest contains the parameters for bringing an operator online.
type RegisterVehicleRequest struct {
	OperatorID   string
	OperatorName string
	VehicleType  string
	Capacity     int
	Origin       string
	Destination  string
	Path         []string
	Lat          float64
	Lng          float64
}

// UpdateLocationRequest is a full vehicle record. It replaces whatever was
// stored for the operator.
type UpdateLocationRequest struct {
	OperatorID       string
	OperatorName     string
	VehicleType      string
	Lat              float64
	Lng              float64
	Heading          float64
	SpeedKmh         float64
	Timestamp        time.Time
	Path             []string
	CurrentStopIndex int
	Capacity         int
	Occupancy        int
	Status           domain.VehicleStatus
}

// NearbyVehicle is a vehicle with its distance from a query point.
type NearbyVehicle struct {
	Vehicle    domain.VehicleState
	DistanceKm float64
}

// Register marks an operator online. When no path is given but both ends
// are, the route is resolved.
func (s *VehicleService) Register(ctx context.Context, req RegisterVehicleRequest) (domain.VehicleState, error) {
	if strings.TrimSpace(req.OperatorID) == "" {
		return domain.VehicleState{}, ErrInvalidOperatorID
	}
	if req.Capacity < 0 {
		return domain.VehicleState{}, ErrInvalidPassengerCount
	}

	path := req.Path
	if len(path) == 0 && req.Origin != "" && req.Destination != "" && s.resolver != nil {
		path = s.resolver.Resolve(ctx, req.Origin, req.Destination).Path
	}

	state := domain.VehicleState{
		OperatorID:   req.OperatorID,
		OperatorName: req.OperatorName,
		VehicleType:  req.VehicleType,
		Path:         path,
		Capacity:     req.Capacity,
		Status:       domain.VehicleStatusIdle,
	}
	if req.Lat != 0 || req.Lng != 0 {
		if !geo.ValidLatitude(req.Lat) || !geo.ValidLongitude(req.Lng) {
			return domain.VehicleState{}, ErrInvalidLocation
		}
		state.Location = domain.Location{Lat: req.Lat, Lng: req.Lng}
		state.NearestStop = s.nearestStop(req.Lat, req.Lng)
		s.index(ctx, req.OperatorID, req.Lat, req.Lng)
	}

	stored, err := s.hub.Register(ctx, state)
	if err != nil {
		return domain.VehicleState{}, err
	}
	log.Printf("[vehicle] %s online with %d stops on path", stored.OperatorID, len(stored.Path))
	return stored, nil
}

// UpdateLocation ingests one telemetry record.
func (s *VehicleService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) (domain.VehicleState, error) {
	if strings.TrimSpace(req.OperatorID) == "" {
		return domain.VehicleState{}, ErrInvalidOperatorID
	}
	if !geo.ValidLatitude(req.Lat) || !geo.ValidLongitude(req.Lng) {
		return domain.VehicleState{}, ErrInvalidLocation
	}
	if req.Capacity < 0 || req.Occupancy < 0 {
		return domain.VehicleState{}, ErrInvalidPassengerCount
	}

	// Redis is a secondary index; the hub stays authoritative.
	s.index(ctx, req.OperatorID, req.Lat, req.Lng)

	return s.hub.UpdateLocation(ctx, domain.VehicleState{
		OperatorID:   req.OperatorID,
		OperatorName: req.OperatorName,
		VehicleType:  req.VehicleType,
		Location: domain.Location{
			Lat:       req.Lat,
			Lng:       req.Lng,
			Heading:   req.Heading,
			SpeedKmh:  req.SpeedKmh,
			Timestamp: req.Timestamp,
		},
		Path:             req.Path,
		CurrentStopIndex: req.CurrentStopIndex,
		Capacity:         req.Capacity,
		Occupancy:        req.Occupancy,
		Status:           req.Status,
		NearestStop:      s.nearestStop(req.Lat, req.Lng),
	})
}

// Disconnect takes an operator offline. It reports whether it was online.
func (s *VehicleService) Disconnect(ctx context.Context, operatorID string) (bool, error) {
	if strings.TrimSpace(operatorID) == "" {
		return false, ErrInvalidOperatorID
	}

	if s.locationStore != nil {
		if err := s.locationStore.RemoveLocation(ctx, operatorID); err != nil {
			log.Printf("[vehicle] failed to remove %s from geo index: %v", operatorID, err)
		}
	}

	known := s.hub.Disconnect(ctx, operatorID)
	if known {
		log.Printf("[vehicle] %s offline", operatorID)
	}
	return known, nil
}

// List returns every active vehicle.
func (s *VehicleService) List() []domain.VehicleState {
	return s.hub.Vehicles()
}

// Get returns one active vehicle.
func (s *VehicleService) Get(operatorID string) (domain.VehicleState, bool) {
	return s.hub.Vehicle(operatorID)
}

// Nearby returns active vehicles within radiusKm of a point, closest first.
func (s *VehicleService) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyVehicle, error) {
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lng) {
		return nil, ErrInvalidLocation
	}

	if s.locationStore != nil {
		indexed, err := s.locationStore.FindNearby(ctx, lat, lng, radiusKm)
		if err == nil {
			out := make([]NearbyVehicle, 0, len(indexed))
			for _, loc := range indexed {
				// Entries written by other replicas may not be in this hub.
				if v, ok := s.hub.Vehicle(loc.OperatorID); ok {
					out = append(out, NearbyVehicle{Vehicle: v, DistanceKm: loc.DistanceKm})
				}
			}
			return out, nil
		}
		log.Printf("[vehicle] geo index lookup failed, scanning hub: %v", err)
	}

	var out []NearbyVehicle
	for _, v := range s.hub.Vehicles() {
		d := geo.HaversineKm(lat, lng, v.Location.Lat, v.Location.Lng)
		if d <= radiusKm {
			out = append(out, NearbyVehicle{Vehicle: v, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out, nil
}

// IngestTelemetry applies a telemetry message received over the message bus.
func (s *VehicleService) IngestTelemetry(ctx context.Context, msg publisher.TelemetryMessage) error {
	var ts time.Time
	if msg.TimestampMs > 0 {
		ts = time.UnixMilli(msg.TimestampMs)
	}
	_, err := s.UpdateLocation(ctx, UpdateLocationRequest{
		OperatorID:       msg.OperatorID,
		OperatorName:     msg.OperatorName,
		VehicleType:      msg.VehicleType,
		Lat:              msg.Lat,
		Lng:              msg.Lng,
		Heading:          msg.Heading,
		SpeedKmh:         msg.SpeedKmh,
		Timestamp:        ts,
		Path:             msg.Path,
		CurrentStopIndex: msg.CurrentStopIndex,
		Capacity:         msg.Capacity,
		Occupancy:        msg.Occupancy,
		Status:           domain.VehicleStatus(msg.Status),
	})
	return err
}

// EndTelemetry handles an operator's end-of-stream message.
func (s *VehicleService) EndTelemetry(ctx context.Context, operatorID string) error {
	_, err := s.Disconnect(ctx, operatorID)
	return err
}

func (s *VehicleService) index(ctx context.Context, operatorID string, lat, lng float64) {
	if s.locationStore == nil {
		return
	}
	if err := s.locationStore.UpdateLocation(ctx, operatorID, lat, lng); err != nil {
		log.Printf("[vehicle] failed to index %s: %v", operatorID, err)
	}
}

func (s *VehicleService) nearestStop(lat, lng float64) string {
	if s.stops == nil {
		return ""
	}
	if n, ok := s.stops.Nearest(lat, lng); ok {
		return n.Stop.Name
	}
	return ""
}
