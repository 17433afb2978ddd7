package memory

import (
	"context"
	"sort"
	"sync"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
)

// PassRepository is an in-memory implementation of repository.PassRepository.
type PassRepository struct {
	mu     sync.RWMutex
	passes map[string]*domain.Pass
}

// NewPassRepository creates an empty pass repository.
func NewPassRepository() *PassRepository {
	return &PassRepository{passes: make(map[string]*domain.Pass)}
}

func clonePass(p *domain.Pass) *domain.Pass {
	out := *p
	out.UsedDates = append([]string(nil), p.UsedDates...)
	return &out
}

// Create adds a new pass.
func (r *PassRepository) Create(ctx context.Context, pass *domain.Pass) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.passes[pass.ID]; ok {
		return repository.ErrConflict
	}
	r.passes[pass.ID] = clonePass(pass)
	return nil
}

// GetByID retrieves a pass by ID.
func (r *PassRepository) GetByID(ctx context.Context, id string) (*domain.Pass, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.passes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePass(p), nil
}

// ListByUser retrieves a user's passes, newest first.
func (r *PassRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Pass, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Pass
	for _, p := range r.passes {
		if p.UserID == userID {
			out = append(out, clonePass(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PurchasedAt.After(out[j].PurchasedAt)
	})
	return out, nil
}

// AddUsedDate records a usage day.
func (r *PassRepository) AddUsedDate(ctx context.Context, id string, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.passes[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.UsedDates = append(p.UsedDates, day)
	return nil
}

var _ repository.PassRepository = (*PassRepository)(nil)
