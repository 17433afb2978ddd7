// Package fleet holds the live registry of vehicles and open tickets and
// fans every change out to subscribers.
//
// Delivery is best effort and at most once: a subscriber whose buffer is full
// misses that delta and must resubscribe to recover a consistent view. Every
// subscription starts with a full snapshot taken atomically with its
// registration, so no change is lost between the snapshot and the first delta.
package fleet

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/keylock"
)

// ErrHubClosed is returned when subscribing to a closed hub.
var ErrHubClosed = errors.New("fleet hub closed")

// ErrInvalidOperatorID is returned when a vehicle update has no operator ID.
var ErrInvalidOperatorID = errors.New("invalid operator id")

// EventType names a hub event.
type EventType string

const (
	EventSnapshot            EventType = "snapshot"
	EventVehicleUpdated      EventType = "vehicle_updated"
	EventVehicleDisconnected EventType = "vehicle_disconnected"
	EventTicketBooked        EventType = "ticket_booked"
	EventTicketUpdated       EventType = "ticket_updated"
)

// Event is a snapshot or a delta. Receivers must treat it as read-only since
// the same value goes to every subscriber.
type Event struct {
	Type       EventType
	Seq        uint64
	At         time.Time
	OperatorID string
	Vehicle    *domain.VehicleState
	Ticket     *domain.Ticket
	Vehicles   []domain.VehicleState // snapshot only
	Tickets    []domain.Ticket       // snapshot only
}

// Relay receives every delta after local fan-out, for cross-process delivery.
type Relay interface {
	Relay(evt Event)
}

// Metrics records hub activity.
type Metrics interface {
	HubDeltaPublished()
	HubDeltaDropped()
	HubSubscribers(n int)
	HubVehicles(n int)
	HubOpenTickets(n int)
}

// Options configures a Hub.
type Options struct {
	SubscriberBuffer int // Deltas buffered per subscriber before dropping
	MaxOpenTickets   int // Oldest open tickets are evicted past this bound
	Relay            Relay
	Metrics          Metrics
	Now              func() time.Time
}

// Hub is the authoritative in-process view of the live fleet.
type Hub struct {
	opts Options
	keys *keylock.Map
	seq  atomic.Uint64

	mu          sync.RWMutex
	vehicles    map[string]domain.VehicleState
	tickets     map[string]domain.Ticket
	ticketOrder []string

	subMu   sync.RWMutex
	subs    map[uint64]*Subscription
	nextSub uint64
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(opts Options) *Hub {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 64
	}
	if opts.MaxOpenTickets <= 0 {
		opts.MaxOpenTickets = 1000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{
		opts:     opts,
		keys:     keylock.New(),
		vehicles: make(map[string]domain.VehicleState),
		tickets:  make(map[string]domain.Ticket),
		subs:     make(map[uint64]*Subscription),
	}
}

// Register marks an operator online and stores its initial state.
func (h *Hub) Register(ctx context.Context, state domain.VehicleState) (domain.VehicleState, error) {
	return h.UpdateLocation(ctx, state)
}

// UpdateLocation replaces the operator's stored record entirely. Concurrent
// updates for the same operator are serialized; the last one wins.
func (h *Hub) UpdateLocation(ctx context.Context, state domain.VehicleState) (domain.VehicleState, error) {
	if state.OperatorID == "" {
		return domain.VehicleState{}, ErrInvalidOperatorID
	}

	unlock := h.keys.Lock("vehicle:" + state.OperatorID)
	defer unlock()

	stored := h.derive(state.Clone())

	h.mu.Lock()
	h.vehicles[stored.OperatorID] = stored
	count := len(h.vehicles)
	h.mu.Unlock()

	if h.opts.Metrics != nil {
		h.opts.Metrics.HubVehicles(count)
	}

	published := stored.Clone()
	h.publish(Event{Type: EventVehicleUpdated, OperatorID: stored.OperatorID, Vehicle: &published})
	return stored.Clone(), nil
}

// Disconnect removes an operator. It reports whether the operator was known.
func (h *Hub) Disconnect(ctx context.Context, operatorID string) bool {
	unlock := h.keys.Lock("vehicle:" + operatorID)
	defer unlock()

	h.mu.Lock()
	_, known := h.vehicles[operatorID]
	delete(h.vehicles, operatorID)
	count := len(h.vehicles)
	h.mu.Unlock()

	if !known {
		return false
	}
	if h.opts.Metrics != nil {
		h.opts.Metrics.HubVehicles(count)
	}
	h.publish(Event{Type: EventVehicleDisconnected, OperatorID: operatorID})
	return true
}

// BookTicket adds a ticket to the open set.
func (h *Hub) BookTicket(ctx context.Context, ticket domain.Ticket) {
	h.putTicket(ticket, EventTicketBooked)
}

// UpdateTicket replaces an open ticket. Completed tickets leave the open set.
func (h *Hub) UpdateTicket(ctx context.Context, ticket domain.Ticket) {
	h.putTicket(ticket, EventTicketUpdated)
}

func (h *Hub) putTicket(ticket domain.Ticket, evtType EventType) {
	unlock := h.keys.Lock("ticket:" + ticket.ID)
	defer unlock()

	stored := ticket.Clone()

	h.mu.Lock()
	if stored.Status == domain.TicketStatusCompleted {
		h.removeTicketLocked(stored.ID)
	} else {
		if _, exists := h.tickets[stored.ID]; !exists {
			h.ticketOrder = append(h.ticketOrder, stored.ID)
		}
		h.tickets[stored.ID] = stored
		for len(h.ticketOrder) > h.opts.MaxOpenTickets {
			oldest := h.ticketOrder[0]
			h.ticketOrder = h.ticketOrder[1:]
			delete(h.tickets, oldest)
		}
	}
	count := len(h.tickets)
	h.mu.Unlock()

	if h.opts.Metrics != nil {
		h.opts.Metrics.HubOpenTickets(count)
	}

	published := stored.Clone()
	h.publish(Event{Type: evtType, OperatorID: stored.OperatorID, Ticket: &published})
}

func (h *Hub) removeTicketLocked(id string) {
	if _, ok := h.tickets[id]; !ok {
		return
	}
	delete(h.tickets, id)
	for i, tid := range h.ticketOrder {
		if tid == id {
			h.ticketOrder = append(h.ticketOrder[:i], h.ticketOrder[i+1:]...)
			break
		}
	}
}

// Vehicle returns one operator's state.
func (h *Hub) Vehicle(operatorID string) (domain.VehicleState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.vehicles[operatorID]
	if !ok {
		return domain.VehicleState{}, false
	}
	return v.Clone(), true
}

// Vehicles returns every active vehicle ordered by operator ID.
func (h *Hub) Vehicles() []domain.VehicleState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.vehiclesLocked()
}

// OpenTickets returns the open tickets, oldest first.
func (h *Hub) OpenTickets() []domain.Ticket {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ticketsLocked()
}

func (h *Hub) vehiclesLocked() []domain.VehicleState {
	out := make([]domain.VehicleState, 0, len(h.vehicles))
	for _, v := range h.vehicles {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OperatorID < out[j].OperatorID
	})
	return out
}

func (h *Hub) ticketsLocked() []domain.Ticket {
	out := make([]domain.Ticket, 0, len(h.ticketOrder))
	for _, id := range h.ticketOrder {
		out = append(out, h.tickets[id].Clone())
	}
	return out
}

// Snapshot returns a consistent point-in-time view.
func (h *Hub) Snapshot() Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Event{
		Type:     EventSnapshot,
		Seq:      h.seq.Load(),
		At:       h.opts.Now(),
		Vehicles: h.vehiclesLocked(),
		Tickets:  h.ticketsLocked(),
	}
}

// derive fills the computed fields of a vehicle record.
func (h *Hub) derive(v domain.VehicleState) domain.VehicleState {
	now := h.opts.Now()
	v.Online = true
	v.UpdatedAt = now
	if v.Location.Timestamp.IsZero() {
		v.Location.Timestamp = now
	}
	if v.Status == "" {
		v.Status = domain.VehicleStatusEnRoute
	}

	if v.Occupancy < 0 {
		v.Occupancy = 0
	}
	v.SeatsAvailable = 0
	if v.Capacity > v.Occupancy {
		v.SeatsAvailable = v.Capacity - v.Occupancy
	}

	v.RouteProgress = 0
	if n := len(v.Path); n > 0 {
		if v.CurrentStopIndex < 0 {
			v.CurrentStopIndex = 0
		}
		if v.CurrentStopIndex > n-1 {
			v.CurrentStopIndex = n - 1
		}
		if n > 1 {
			v.RouteProgress = float64(v.CurrentStopIndex) / float64(n-1)
		}
	} else {
		v.CurrentStopIndex = 0
	}
	return v
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
	if h.opts.Metrics != nil {
		h.opts.Metrics.HubSubscribers(0)
	}
}
