package memory

import (
	"context"
	"sort"
	"sync"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
)

// TicketRepository is an in-memory implementation of repository.TicketRepository.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

// NewTicketRepository creates an empty ticket repository.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{tickets: make(map[string]*domain.Ticket)}
}

// Create adds a new ticket.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; ok {
		return repository.ErrConflict
	}
	t := ticket.Clone()
	r.tickets[t.ID] = &t
	return nil
}

// GetByID retrieves a ticket by ID.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := t.Clone()
	return &out, nil
}

// Update replaces a stored ticket.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return repository.ErrNotFound
	}
	t := ticket.Clone()
	r.tickets[t.ID] = &t
	return nil
}

// ListByPassenger retrieves a passenger's tickets, newest first.
func (r *TicketRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Ticket
	for _, t := range r.tickets {
		if t.PassengerID == passengerID {
			c := t.Clone()
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ repository.TicketRepository = (*TicketRepository)(nil)
