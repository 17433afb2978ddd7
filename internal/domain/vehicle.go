package domain

import "time"

// VehicleStatus represents the operational status reported by an operator.
type VehicleStatus string

const (
	VehicleStatusEnRoute     VehicleStatus = "EN_ROUTE"
	VehicleStatusDelayed     VehicleStatus = "DELAYED"
	VehicleStatusIdle        VehicleStatus = "IDLE"
	VehicleStatusMaintenance VehicleStatus = "MAINTENANCE"
)

// Location is a single telemetry fix.
type Location struct {
	Lat       float64
	Lng       float64
	Heading   float64
	SpeedKmh  float64
	Timestamp time.Time
}

// VehicleState is the live record of one operator's vehicle, keyed by OperatorID.
type VehicleState struct {
	OperatorID       string
	OperatorName     string
	VehicleType      string
	Online           bool
	Location         Location
	Path             []string
	CurrentStopIndex int
	Capacity         int
	Occupancy        int
	Status           VehicleStatus

	// Derived on ingest.
	RouteProgress  float64 // 0..1 along Path
	SeatsAvailable int
	NearestStop    string
	UpdatedAt      time.Time
}

// Clone returns a deep copy so callers never share the Path slice.
func (v VehicleState) Clone() VehicleState {
	if v.Path != nil {
		v.Path = append([]string(nil), v.Path...)
	}
	return v
}
