// Package memory holds in-process implementations of the repository
// interfaces, selected with STORAGE_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
)

// WalletRepository is an in-memory implementation of repository.WalletRepository.
type WalletRepository struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet
	txs     map[string][]*domain.WalletTransaction
}

// NewWalletRepository creates an empty wallet repository.
func NewWalletRepository() *WalletRepository {
	return &WalletRepository{
		wallets: make(map[string]*domain.Wallet),
		txs:     make(map[string][]*domain.WalletTransaction),
	}
}

// Create adds a new wallet.
func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[wallet.OwnerID]; ok {
		return repository.ErrConflict
	}
	w := *wallet
	r.wallets[w.OwnerID] = &w
	return nil
}

// GetByOwner retrieves a wallet by owner ID.
func (r *WalletRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[ownerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *w
	return &out, nil
}

// Save persists balances and appends transactions under one lock.
func (r *WalletRepository) Save(ctx context.Context, wallets []*domain.Wallet, txs []*domain.WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range wallets {
		if _, ok := r.wallets[w.OwnerID]; !ok {
			return repository.ErrNotFound
		}
	}
	for _, w := range wallets {
		stored := *w
		r.wallets[w.OwnerID] = &stored
	}
	for _, tx := range txs {
		t := *tx
		r.txs[t.OwnerID] = append(r.txs[t.OwnerID], &t)
	}
	return nil
}

// Revert restores balances and drops the listed transactions.
func (r *WalletRepository) Revert(ctx context.Context, wallets []*domain.Wallet, txIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range wallets {
		stored := *w
		r.wallets[w.OwnerID] = &stored
	}
	drop := make(map[string]bool, len(txIDs))
	for _, id := range txIDs {
		drop[id] = true
	}
	for owner, list := range r.txs {
		kept := list[:0]
		for _, tx := range list {
			if !drop[tx.ID] {
				kept = append(kept, tx)
			}
		}
		r.txs[owner] = kept
	}
	return nil
}

// ListTransactions returns an owner's transactions, newest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, ownerID string, limit int) ([]*domain.WalletTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.txs[ownerID]
	out := make([]*domain.WalletTransaction, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		t := *list[i]
		out = append(out, &t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

var _ repository.WalletRepository = (*WalletRepository)(nil)
