package redis

import (
	"context"
	"time"

	"villagelink/internal/domain"
)

// LocationStoreInterface defines the interface for vehicle location indexing.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, operatorID string, lat, lng float64) error
	FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]VehicleLocation, error)
	RemoveLocation(ctx context.Context, operatorID string) error
}

// LockStoreInterface defines the interface for distributed wallet locking.
type LockStoreInterface interface {
	WaitWalletLock(ctx context.Context, ownerID string, ttl time.Duration) (string, error)
	ReleaseWalletLock(ctx context.Context, ownerID, token string) error
}

// RouteCacheInterface defines the interface for resolved route caching.
type RouteCacheInterface interface {
	GetRoute(ctx context.Context, origin, destination string) (*domain.ResolvedPath, error)
	SetRoute(ctx context.Context, origin, destination string, route *domain.ResolvedPath) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ RouteCacheInterface    = (*CacheStore)(nil)
)
