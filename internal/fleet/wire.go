package fleet

import (
	"time"

	"villagelink/internal/domain"
)

// VehicleView is the JSON form of a vehicle record.
type VehicleView struct {
	OperatorID       string    `json:"operator_id"`
	OperatorName     string    `json:"operator_name,omitempty"`
	VehicleType      string    `json:"vehicle_type,omitempty"`
	Online           bool      `json:"online"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	Heading          float64   `json:"heading"`
	SpeedKmh         float64   `json:"speed_kmh"`
	Timestamp        time.Time `json:"timestamp"`
	Path             []string  `json:"path"`
	CurrentStopIndex int       `json:"current_stop_index"`
	Capacity         int       `json:"capacity"`
	Occupancy        int       `json:"occupancy"`
	SeatsAvailable   int       `json:"seats_available"`
	RouteProgress    float64   `json:"route_progress"`
	NearestStop      string    `json:"nearest_stop,omitempty"`
	Status           string    `json:"status"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TicketView is the JSON form of a ticket.
type TicketView struct {
	ID             string    `json:"id"`
	PassengerID    string    `json:"passenger_id"`
	OperatorID     string    `json:"operator_id,omitempty"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	Path           []string  `json:"path"`
	DistanceKm     float64   `json:"distance_km"`
	Status         string    `json:"status"`
	Price          int64     `json:"price"`
	PassengerCount int       `json:"passenger_count"`
	PaymentMethod  string    `json:"payment_method"`
	FareLabel      string    `json:"fare_label,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WireEvent is the JSON form of an Event.
type WireEvent struct {
	Type       EventType     `json:"type"`
	Seq        uint64        `json:"seq"`
	At         time.Time     `json:"at"`
	OperatorID string        `json:"operator_id,omitempty"`
	Vehicle    *VehicleView  `json:"vehicle,omitempty"`
	Ticket     *TicketView   `json:"ticket,omitempty"`
	Vehicles   []VehicleView `json:"vehicles,omitempty"`
	Tickets    []TicketView  `json:"tickets,omitempty"`
}

// NewVehicleView converts a vehicle record.
func NewVehicleView(v domain.VehicleState) VehicleView {
	path := v.Path
	if path == nil {
		path = []string{}
	}
	return VehicleView{
		OperatorID:       v.OperatorID,
		OperatorName:     v.OperatorName,
		VehicleType:      v.VehicleType,
		Online:           v.Online,
		Lat:              v.Location.Lat,
		Lng:              v.Location.Lng,
		Heading:          v.Location.Heading,
		SpeedKmh:         v.Location.SpeedKmh,
		Timestamp:        v.Location.Timestamp,
		Path:             path,
		CurrentStopIndex: v.CurrentStopIndex,
		Capacity:         v.Capacity,
		Occupancy:        v.Occupancy,
		SeatsAvailable:   v.SeatsAvailable,
		RouteProgress:    v.RouteProgress,
		NearestStop:      v.NearestStop,
		Status:           string(v.Status),
		UpdatedAt:        v.UpdatedAt,
	}
}

// NewTicketView converts a ticket.
func NewTicketView(t domain.Ticket) TicketView {
	path := t.Path
	if path == nil {
		path = []string{}
	}
	return TicketView{
		ID:             t.ID,
		PassengerID:    t.PassengerID,
		OperatorID:     t.OperatorID,
		Origin:         t.Origin,
		Destination:    t.Destination,
		Path:           path,
		DistanceKm:     t.DistanceKm,
		Status:         string(t.Status),
		Price:          t.Price,
		PassengerCount: t.PassengerCount,
		PaymentMethod:  string(t.PaymentMethod),
		FareLabel:      t.FareLabel,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// Wire converts the event to its JSON form.
func (e Event) Wire() WireEvent {
	w := WireEvent{
		Type:       e.Type,
		Seq:        e.Seq,
		At:         e.At,
		OperatorID: e.OperatorID,
	}
	if e.Vehicle != nil {
		v := NewVehicleView(*e.Vehicle)
		w.Vehicle = &v
	}
	if e.Ticket != nil {
		t := NewTicketView(*e.Ticket)
		w.Ticket = &t
	}
	if e.Type == EventSnapshot {
		w.Vehicles = make([]VehicleView, 0, len(e.Vehicles))
		for _, v := range e.Vehicles {
			w.Vehicles = append(w.Vehicles, NewVehicleView(v))
		}
		w.Tickets = make([]TicketView, 0, len(e.Tickets))
		for _, t := range e.Tickets {
			w.Tickets = append(w.Tickets, NewTicketView(t))
		}
	}
	return w
}
