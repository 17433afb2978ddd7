package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
)

// TicketRepository is a PostgreSQL implementation of repository.TicketRepository.
type TicketRepository struct {
	q Querier
}

// NewTicketRepository creates a new PostgreSQL ticket repository.
func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{q: db}
}

// NewTicketRepositoryWithTx creates a ticket repository using a transaction.
func NewTicketRepositoryWithTx(tx *sql.Tx) *TicketRepository {
	return &TicketRepository{q: tx}
}

const ticketColumns = `id, passenger_id, COALESCE(operator_id, ''), origin, destination, path, distance_km, status,
	price, passenger_count, payment_method, COALESCE(fare_label, ''), created_at, updated_at`

// Create adds a new ticket.
func (r *TicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	path, err := json.Marshal(nonNil(t.Path))
	if err != nil {
		return err
	}
	query := `INSERT INTO tickets (id, passenger_id, operator_id, origin, destination, path, distance_km, status,
		price, passenger_count, payment_method, fare_label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = r.q.ExecContext(ctx, query, t.ID, t.PassengerID, t.OperatorID, t.Origin, t.Destination, string(path),
		t.DistanceKm, t.Status, t.Price, t.PassengerCount, t.PaymentMethod, t.FareLabel, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// GetByID retrieves a ticket by ID.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	t, err := scanTicket(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// Update replaces the mutable fields of a ticket.
func (r *TicketRepository) Update(ctx context.Context, t *domain.Ticket) error {
	query := `UPDATE tickets SET operator_id = $1, status = $2, payment_method = $3, updated_at = $4 WHERE id = $5`
	result, err := r.q.ExecContext(ctx, query, t.OperatorID, t.Status, t.PaymentMethod, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByPassenger retrieves a passenger's tickets, newest first.
func (r *TicketRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE passenger_id = $1 ORDER BY created_at DESC`
	rows, err := r.q.QueryContext(ctx, query, passengerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var t domain.Ticket
	var path []byte
	err := row.Scan(&t.ID, &t.PassengerID, &t.OperatorID, &t.Origin, &t.Destination, &path, &t.DistanceKm, &t.Status,
		&t.Price, &t.PassengerCount, &t.PaymentMethod, &t.FareLabel, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(path) > 0 {
		if err := json.Unmarshal(path, &t.Path); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

var _ repository.TicketRepository = (*TicketRepository)(nil)
