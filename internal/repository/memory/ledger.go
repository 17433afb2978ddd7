package memory

import (
	"context"
	"sync"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
)

// LedgerRepository is an in-memory implementation of repository.LedgerRepository.
type LedgerRepository struct {
	mu     sync.RWMutex
	blocks []*domain.LedgerBlock
}

// NewLedgerRepository creates an empty chain store.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

// Append stores a block. The index must be exactly the next one.
func (r *LedgerRepository) Append(ctx context.Context, block *domain.LedgerBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if block.Index != int64(len(r.blocks)) {
		return repository.ErrConflict
	}
	b := *block
	b.Payload = append([]byte(nil), block.Payload...)
	r.blocks = append(r.blocks, &b)
	return nil
}

// Last retrieves the tail block.
func (r *LedgerRepository) Last(ctx context.Context) (*domain.LedgerBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.blocks) == 0 {
		return nil, repository.ErrNotFound
	}
	b := *r.blocks[len(r.blocks)-1]
	return &b, nil
}

// List returns up to limit blocks starting at fromIndex.
func (r *LedgerRepository) List(ctx context.Context, fromIndex int64, limit int) ([]*domain.LedgerBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fromIndex < 0 {
		fromIndex = 0
	}
	var out []*domain.LedgerBlock
	for i := fromIndex; i < int64(len(r.blocks)); i++ {
		b := *r.blocks[i]
		b.Payload = append([]byte(nil), r.blocks[i].Payload...)
		out = append(out, &b)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ repository.LedgerRepository = (*LedgerRepository)(nil)
