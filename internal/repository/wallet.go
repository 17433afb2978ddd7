package repository

import (
	"context"

	"villagelink/internal/domain"
)

// WalletRepository defines the persistence operations for token wallets.
type WalletRepository interface {
	// Create adds a new wallet. Returns ErrConflict if the owner already has one.
	Create(ctx context.Context, wallet *domain.Wallet) error

	// GetByOwner retrieves a wallet by owner ID.
	GetByOwner(ctx context.Context, ownerID string) (*domain.Wallet, error)

	// Save persists the balances of all wallets and appends the transactions
	// as one atomic unit.
	Save(ctx context.Context, wallets []*domain.Wallet, txs []*domain.WalletTransaction) error

	// Revert restores the given balances and removes the given transactions.
	// It undoes a Save whose follow-up work failed.
	Revert(ctx context.Context, wallets []*domain.Wallet, txIDs []string) error

	// ListTransactions returns an owner's transactions, newest first.
	ListTransactions(ctx context.Context, ownerID string, limit int) ([]*domain.WalletTransaction, error)
}
