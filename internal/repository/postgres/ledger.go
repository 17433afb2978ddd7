package postgres

import (
	"context"
	"database/sql"
	"errors"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
)

// LedgerRepository is a PostgreSQL implementation of repository.LedgerRepository.
// The primary key on idx makes a second writer for the same tail fail with
// ErrConflict.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{q: db}
}

// Append stores a block.
func (r *LedgerRepository) Append(ctx context.Context, block *domain.LedgerBlock) error {
	query := `INSERT INTO ledger_blocks (idx, ts, payload, previous_hash, hash, validator) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query, block.Index, block.Timestamp, string(block.Payload), block.PreviousHash, block.Hash, block.Validator)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// Last retrieves the tail block.
func (r *LedgerRepository) Last(ctx context.Context) (*domain.LedgerBlock, error) {
	query := `SELECT idx, ts, payload, previous_hash, hash, validator FROM ledger_blocks ORDER BY idx DESC LIMIT 1`
	b, err := scanBlock(r.q.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List returns up to limit blocks starting at fromIndex.
func (r *LedgerRepository) List(ctx context.Context, fromIndex int64, limit int) ([]*domain.LedgerBlock, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT idx, ts, payload, previous_hash, hash, validator FROM ledger_blocks WHERE idx >= $1 ORDER BY idx LIMIT $2`
	rows, err := r.q.QueryContext(ctx, query, fromIndex, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []*domain.LedgerBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*domain.LedgerBlock, error) {
	var b domain.LedgerBlock
	var payload string
	if err := row.Scan(&b.Index, &b.Timestamp, &payload, &b.PreviousHash, &b.Hash, &b.Validator); err != nil {
		return nil, err
	}
	b.Payload = []byte(payload)
	return &b, nil
}

var _ repository.LedgerRepository = (*LedgerRepository)(nil)
