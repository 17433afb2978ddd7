package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
)

// PassRepository is a PostgreSQL implementation of repository.PassRepository.
type PassRepository struct {
	q Querier
}

// NewPassRepository creates a new PostgreSQL pass repository.
func NewPassRepository(db *sql.DB) *PassRepository {
	return &PassRepository{q: db}
}

const passColumns = `id, user_id, origin, destination, type, validity_days, price, used_dates, purchased_at, expires_at, COALESCE(nft_token_id, '')`

// Create adds a new pass.
func (r *PassRepository) Create(ctx context.Context, pass *domain.Pass) error {
	used, err := json.Marshal(nonNil(pass.UsedDates))
	if err != nil {
		return err
	}
	query := `INSERT INTO passes (id, user_id, origin, destination, type, validity_days, price, used_dates, purchased_at, expires_at, nft_token_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.q.ExecContext(ctx, query, pass.ID, pass.UserID, pass.Origin, pass.Destination, pass.Type,
		pass.ValidityDays, pass.Price, string(used), pass.PurchasedAt, pass.ExpiresAt, pass.NFTTokenID)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// GetByID retrieves a pass by ID.
func (r *PassRepository) GetByID(ctx context.Context, id string) (*domain.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE id = $1`
	p, err := scanPass(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByUser retrieves a user's passes, newest first.
func (r *PassRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE user_id = $1 ORDER BY purchased_at DESC`
	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passes []*domain.Pass
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

// AddUsedDate appends a usage day to the stored JSON array.
func (r *PassRepository) AddUsedDate(ctx context.Context, id string, day string) error {
	query := `UPDATE passes SET used_dates = used_dates || to_jsonb($1::text) WHERE id = $2`
	result, err := r.q.ExecContext(ctx, query, day, id)
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

func scanPass(row rowScanner) (*domain.Pass, error) {
	var p domain.Pass
	var used []byte
	err := row.Scan(&p.ID, &p.UserID, &p.Origin, &p.Destination, &p.Type, &p.ValidityDays, &p.Price,
		&used, &p.PurchasedAt, &p.ExpiresAt, &p.NFTTokenID)
	if err != nil {
		return nil, err
	}
	if len(used) > 0 {
		if err := json.Unmarshal(used, &p.UsedDates); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ repository.PassRepository = (*PassRepository)(nil)
