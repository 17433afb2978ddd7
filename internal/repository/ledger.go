package repository

import (
	"context"

	"villagelink/internal/domain"
)

// LedgerRepository defines the persistence operations for the block chain.
type LedgerRepository interface {
	// Append stores a block. Returns ErrConflict if the index is taken.
	Append(ctx context.Context, block *domain.LedgerBlock) error

	// Last retrieves the block with the highest index, or ErrNotFound when
	// the chain is empty.
	Last(ctx context.Context) (*domain.LedgerBlock, error)

	// List returns up to limit blocks starting at fromIndex, ascending.
	List(ctx context.Context, fromIndex int64, limit int) ([]*domain.LedgerBlock, error)
}
