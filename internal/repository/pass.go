package repository

import (
	"context"

	"villagelink/internal/domain"
)

// PassRepository defines the persistence operations for travel passes.
type PassRepository interface {
	// Create adds a new pass.
	Create(ctx context.Context, pass *domain.Pass) error

	// GetByID retrieves a pass by ID.
	GetByID(ctx context.Context, id string) (*domain.Pass, error)

	// ListByUser retrieves all passes owned by a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Pass, error)

	// AddUsedDate records a usage day on a pass.
	AddUsedDate(ctx context.Context, id string, day string) error
}
