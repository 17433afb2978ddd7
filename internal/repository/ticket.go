package repository

import (
	"context"

	"villagelink/internal/domain"
)

// TicketRepository defines the persistence operations for ticket history.
type TicketRepository interface {
	// Create adds a new ticket.
	Create(ctx context.Context, ticket *domain.Ticket) error

	// GetByID retrieves a ticket by ID.
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)

	// Update replaces the mutable fields of a ticket.
	Update(ctx context.Context, ticket *domain.Ticket) error

	// ListByPassenger retrieves a passenger's tickets, newest first.
	ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Ticket, error)
}
