package postgres

import (
	"context"
	"database/sql"
	"errors"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
)

// WalletRepository is a PostgreSQL implementation of repository.WalletRepository.
type WalletRepository struct {
	db *sql.DB
	q  Querier
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db, q: db}
}

// NewWalletRepositoryWithTx creates a wallet repository using a transaction.
func NewWalletRepositoryWithTx(tx *sql.Tx) *WalletRepository {
	return &WalletRepository{q: tx}
}

// Create adds a new wallet.
func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (owner_id, balance, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	_, err := r.q.ExecContext(ctx, query, wallet.OwnerID, wallet.Balance, wallet.CreatedAt, wallet.UpdatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// GetByOwner retrieves a wallet by owner ID.
func (r *WalletRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	query := `SELECT owner_id, balance, created_at, updated_at FROM wallets WHERE owner_id = $1`

	var w domain.Wallet
	err := r.q.QueryRowContext(ctx, query, ownerID).Scan(&w.OwnerID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// Save persists balances and transactions in one database transaction.
func (r *WalletRepository) Save(ctx context.Context, wallets []*domain.Wallet, txs []*domain.WalletTransaction) error {
	return withTx(ctx, r.db, r.q, func(q Querier) error {
		for _, w := range wallets {
			if err := updateBalance(ctx, q, w); err != nil {
				return err
			}
		}
		for _, tx := range txs {
			query := `INSERT INTO wallet_transactions (id, owner_id, type, amount, description, related_entity_id, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`
			if _, err := q.ExecContext(ctx, query, tx.ID, tx.OwnerID, tx.Type, tx.Amount, tx.Description, tx.RelatedEntityID, tx.Timestamp); err != nil {
				return err
			}
		}
		return nil
	})
}

// Revert restores balances and deletes the listed transactions.
func (r *WalletRepository) Revert(ctx context.Context, wallets []*domain.Wallet, txIDs []string) error {
	return withTx(ctx, r.db, r.q, func(q Querier) error {
		for _, w := range wallets {
			if err := updateBalance(ctx, q, w); err != nil {
				return err
			}
		}
		for _, id := range txIDs {
			if _, err := q.ExecContext(ctx, `DELETE FROM wallet_transactions WHERE id = $1`, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func updateBalance(ctx context.Context, q Querier, w *domain.Wallet) error {
	query := `UPDATE wallets SET balance = $1, updated_at = $2 WHERE owner_id = $3`
	result, err := q.ExecContext(ctx, query, w.Balance, w.UpdatedAt, w.OwnerID)
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

// ListTransactions returns an owner's transactions, newest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, ownerID string, limit int) ([]*domain.WalletTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, owner_id, type, amount, COALESCE(description, ''), COALESCE(related_entity_id, ''), created_at
		FROM wallet_transactions WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.q.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.WalletTransaction
	for rows.Next() {
		var tx domain.WalletTransaction
		if err := rows.Scan(&tx.ID, &tx.OwnerID, &tx.Type, &tx.Amount, &tx.Description, &tx.RelatedEntityID, &tx.Timestamp); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

var _ repository.WalletRepository = (*WalletRepository)(nil)
