package tests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/fleet"
	"villagelink/internal/network"
	"villagelink/internal/redis"
	"villagelink/internal/repository"
	"villagelink/internal/repository/memory"
	"villagelink/internal/stops"
)

// ──────────────────────────────────────────────
// MOCK GEOMETRY PROVIDER
// ──────────────────────────────────────────────

// errNoMockRoute is returned for pairs without a configured geometry.
var errNoMockRoute = errors.New("mock: no route configured")

// MockGeometryProvider is a mock road-geometry provider.
type MockGeometryProvider struct {
	mu     sync.RWMutex
	routes map[string]*domain.RouteGeometry

	// Counters for verification
	CallCount int32

	// Behaviour injection
	Err   error
	Delay time.Duration
}

// NewMockGeometryProvider creates a new mock provider.
func NewMockGeometryProvider() *MockGeometryProvider {
	return &MockGeometryProvider{
		routes: make(map[string]*domain.RouteGeometry),
	}
}

// SetRoute configures the geometry returned for a pair of stop names.
// Coordinates are (lng, lat).
func (m *MockGeometryProvider) SetRoute(from, to string, coords [][2]float64, distanceKm float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[routeKey(from, to)] = &domain.RouteGeometry{Coordinates: coords, DistanceKm: distanceKm}
}

func (m *MockGeometryProvider) Route(ctx context.Context, from, to domain.Stop) (*domain.RouteGeometry, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	geom, ok := m.routes[routeKey(from.Name, to.Name)]
	if !ok {
		return nil, errNoMockRoute
	}
	copy := *geom
	return &copy, nil
}

// Calls returns how often Route was called.
func (m *MockGeometryProvider) Calls() int {
	return int(atomic.LoadInt32(&m.CallCount))
}

func routeKey(from, to string) string {
	return strings.ToLower(from) + "|" + strings.ToLower(to)
}

// ──────────────────────────────────────────────
// MOCK ROUTE CACHE
// ──────────────────────────────────────────────

// MockRouteCache is a mock implementation of RouteCacheInterface.
type MockRouteCache struct {
	mu     sync.RWMutex
	routes map[string]domain.ResolvedPath

	// Counters
	GetCallCount int32
	SetCallCount int32
}

// NewMockRouteCache creates a new mock route cache.
func NewMockRouteCache() *MockRouteCache {
	return &MockRouteCache{routes: make(map[string]domain.ResolvedPath)}
}

func (m *MockRouteCache) GetRoute(ctx context.Context, origin, destination string) (*domain.ResolvedPath, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[routeKey(origin, destination)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MockRouteCache) SetRoute(ctx context.Context, origin, destination string, route *domain.ResolvedPath) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[routeKey(origin, destination)] = *route
	return nil
}

// Len returns the number of cached routes.
func (m *MockRouteCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.routes)
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStore.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations []redis.VehicleLocation

	// Counters
	UpdateLocationCallCount int32
	RemoveLocationCallCount int32

	// Error injection
	UpdateLocationError error
	FindNearbyError     error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make([]redis.VehicleLocation, 0),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, operatorID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.OperatorID == operatorID {
			m.locations[i].Lat = lat
			m.locations[i].Lng = lng
			return nil
		}
	}
	m.locations = append(m.locations, redis.VehicleLocation{
		OperatorID: operatorID,
		Lat:        lat,
		Lng:        lng,
	})
	return nil
}

func (m *MockLocationStore) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]redis.VehicleLocation, error) {
	if m.FindNearbyError != nil {
		return nil, m.FindNearbyError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Return all locations (mock doesn't do real geo filtering).
	result := make([]redis.VehicleLocation, len(m.locations))
	copy(result, m.locations)
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, operatorID string) error {
	atomic.AddInt32(&m.RemoveLocationCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.OperatorID == operatorID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// HasLocation checks if an operator location exists.
func (m *MockLocationStore) HasLocation(operatorID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations {
		if loc.OperatorID == operatorID {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore. Waiting on a held
// lock blocks until it is released or ctx ends. Each acquire hands out a
// fresh token and release only frees a lock whose token matches.
type MockLockStore struct {
	mu     sync.Mutex
	cond   *sync.Cond
	locks  map[string]string
	serial int

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32
	StaleReleases    int32

	// Error injection
	WaitError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	m := &MockLockStore{locks: make(map[string]string)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *MockLockStore) WaitWalletLock(ctx context.Context, ownerID string, ttl time.Duration) (string, error) {
	if m.WaitError != nil {
		return "", m.WaitError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.locks[ownerID] != "" {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		m.cond.Wait()
	}
	m.serial++
	token := fmt.Sprintf("token-%d", m.serial)
	m.locks[ownerID] = token
	atomic.AddInt32(&m.AcquireCallCount, 1)
	return token, nil
}

func (m *MockLockStore) ReleaseWalletLock(ctx context.Context, ownerID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[ownerID] != token {
		atomic.AddInt32(&m.StaleReleases, 1)
		return nil
	}
	delete(m.locks, ownerID)
	m.cond.Broadcast()
	return nil
}

// Expire drops an owner's lock as if its TTL ran out and hands it to a new
// holder, returning that holder's token.
func (m *MockLockStore) Expire(ownerID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serial++
	token := fmt.Sprintf("token-%d", m.serial)
	m.locks[ownerID] = token
	return token
}

// IsLocked reports whether an owner's lock is held.
func (m *MockLockStore) IsLocked(ownerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[ownerID] != ""
}

// ──────────────────────────────────────────────
// MOCK RELAY
// ──────────────────────────────────────────────

// MockRelay records every relayed hub event.
type MockRelay struct {
	mu     sync.Mutex
	events []fleet.Event
}

func (m *MockRelay) Relay(evt fleet.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

// Types returns the relayed event types in order.
func (m *MockRelay) Types() []fleet.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]fleet.EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

// ──────────────────────────────────────────────
// FAILING LEDGER REPOSITORY
// ──────────────────────────────────────────────

// FailingLedgerRepository wraps the in-memory ledger with error injection.
type FailingLedgerRepository struct {
	*memory.LedgerRepository

	mu     sync.Mutex
	failAt map[int64]error

	// Error injection
	AppendError error
}

// NewFailingLedgerRepository creates a ledger repository that succeeds
// until AppendError is set.
func NewFailingLedgerRepository() *FailingLedgerRepository {
	return &FailingLedgerRepository{
		LedgerRepository: memory.NewLedgerRepository(),
		failAt:           make(map[int64]error),
	}
}

// FailOnceAt makes the next append of the block at index fail with err.
func (r *FailingLedgerRepository) FailOnceAt(index int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAt[index] = err
}

func (r *FailingLedgerRepository) Append(ctx context.Context, block *domain.LedgerBlock) error {
	if r.AppendError != nil {
		return r.AppendError
	}
	r.mu.Lock()
	err, ok := r.failAt[block.Index]
	delete(r.failAt, block.Index)
	r.mu.Unlock()
	if ok {
		return err
	}
	return r.LedgerRepository.Append(ctx, block)
}

var _ repository.LedgerRepository = (*FailingLedgerRepository)(nil)

// ──────────────────────────────────────────────
// TAMPERING LEDGER REPOSITORY
// ──────────────────────────────────────────────

// TamperingLedgerRepository serves stored blocks through edits registered
// with Tamper, simulating a modified store.
type TamperingLedgerRepository struct {
	*memory.LedgerRepository

	mu    sync.Mutex
	edits map[int64]func(*domain.LedgerBlock)
}

// NewTamperingLedgerRepository creates an empty tamperable chain store.
func NewTamperingLedgerRepository() *TamperingLedgerRepository {
	return &TamperingLedgerRepository{
		LedgerRepository: memory.NewLedgerRepository(),
		edits:            make(map[int64]func(*domain.LedgerBlock)),
	}
}

// Tamper applies mutate to the block at index on every subsequent read.
func (r *TamperingLedgerRepository) Tamper(index int64, mutate func(*domain.LedgerBlock)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits[index] = mutate
}

func (r *TamperingLedgerRepository) List(ctx context.Context, fromIndex int64, limit int) ([]*domain.LedgerBlock, error) {
	blocks, err := r.LedgerRepository.List(ctx, fromIndex, limit)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range blocks {
		if mutate, ok := r.edits[b.Index]; ok {
			mutate(b)
		}
	}
	return blocks, nil
}

var _ repository.LedgerRepository = (*TamperingLedgerRepository)(nil)

// ──────────────────────────────────────────────
// FAILING TICKET AND PASS REPOSITORIES
// ──────────────────────────────────────────────

// FailingTicketRepository wraps the in-memory ticket store with error injection.
type FailingTicketRepository struct {
	*memory.TicketRepository

	// Error injection
	CreateError error
}

// NewFailingTicketRepository creates a ticket repository whose Create fails
// with err.
func NewFailingTicketRepository(err error) *FailingTicketRepository {
	return &FailingTicketRepository{TicketRepository: memory.NewTicketRepository(), CreateError: err}
}

func (r *FailingTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if r.CreateError != nil {
		return r.CreateError
	}
	return r.TicketRepository.Create(ctx, ticket)
}

var _ repository.TicketRepository = (*FailingTicketRepository)(nil)

// FailingPassRepository wraps the in-memory pass store with error injection.
type FailingPassRepository struct {
	*memory.PassRepository

	// Error injection
	CreateError error
}

// NewFailingPassRepository creates a pass repository whose Create fails
// with err.
func NewFailingPassRepository(err error) *FailingPassRepository {
	return &FailingPassRepository{PassRepository: memory.NewPassRepository(), CreateError: err}
}

func (r *FailingPassRepository) Create(ctx context.Context, pass *domain.Pass) error {
	if r.CreateError != nil {
		return r.CreateError
	}
	return r.PassRepository.Create(ctx, pass)
}

var _ repository.PassRepository = (*FailingPassRepository)(nil)

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

// loadNetwork returns the embedded Rohtas stop directory and graph.
func loadNetwork(t *testing.T) (*stops.Directory, *network.Graph) {
	t.Helper()
	ds, err := stops.LoadDataset("")
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	dir, err := stops.NewDirectory(ds.DomainStops())
	if err != nil {
		t.Fatalf("build directory: %v", err)
	}
	return dir, network.NewGraph(ds.DomainNodes())
}

// coordsOf returns the (lng, lat) coordinates of named stops.
func coordsOf(t *testing.T, dir *stops.Directory, names ...string) [][2]float64 {
	t.Helper()
	out := make([][2]float64, 0, len(names))
	for _, n := range names {
		s, ok := dir.Lookup(n)
		if !ok {
			t.Fatalf("unknown stop %q", n)
		}
		out = append(out, [2]float64{s.Lng, s.Lat})
	}
	return out
}

// fixedClock returns a settable clock for services.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock { return &fixedClock{now: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
