package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"villagelink/internal/domain"
)

const routeCachePrefix = "cache:route:"

// CacheStore caches resolved routes in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore with the given entry TTL.
func NewCacheStore(client *redis.Client, ttl time.Duration) *CacheStore {
	return &CacheStore{client: client, ttl: ttl}
}

// CachedRoute represents a cached resolved path.
type CachedRoute struct {
	Path       []string `json:"path"`
	DistanceKm float64  `json:"distance_km"`
	Source     string   `json:"source"`
}

func routeKey(origin, destination string) string {
	return routeCachePrefix + strings.ToLower(origin) + "|" + strings.ToLower(destination)
}

// GetRoute retrieves a route from cache. Returns nil on a miss.
func (s *CacheStore) GetRoute(ctx context.Context, origin, destination string) (*domain.ResolvedPath, error) {
	data, err := s.client.Get(ctx, routeKey(origin, destination)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached CachedRoute
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &domain.ResolvedPath{
		Path:       cached.Path,
		DistanceKm: cached.DistanceKm,
		Source:     domain.RouteSource(cached.Source),
	}, nil
}

// SetRoute stores a route in cache.
func (s *CacheStore) SetRoute(ctx context.Context, origin, destination string, route *domain.ResolvedPath) error {
	data, err := json.Marshal(CachedRoute{
		Path:       route.Path,
		DistanceKm: route.DistanceKm,
		Source:     string(route.Source),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, routeKey(origin, destination), data, s.ttl).Err()
}
