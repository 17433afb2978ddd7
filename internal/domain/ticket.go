package domain

import "time"

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "PENDING"
	TicketStatusPaid      TicketStatus = "PAID"
	TicketStatusBoarded   TicketStatus = "BOARDED"
	TicketStatusCompleted TicketStatus = "COMPLETED"
)

// PaymentMethod represents how a ticket was (or will be) paid.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodOnline   PaymentMethod = "ONLINE"
	PaymentMethodGramCoin PaymentMethod = "GRAMCOIN"
	PaymentMethodNone     PaymentMethod = "NONE"
)

// Ticket is a passenger booking between two stops.
type Ticket struct {
	ID             string
	PassengerID    string
	OperatorID     string
	Origin         string
	Destination    string
	Path           []string
	DistanceKm     float64
	Status         TicketStatus
	Price          int64
	PassengerCount int
	PaymentMethod  PaymentMethod
	FareLabel      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy of the ticket.
func (t Ticket) Clone() Ticket {
	if t.Path != nil {
		t.Path = append([]string(nil), t.Path...)
	}
	return t
}
