package service

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/geo"
	"villagelink/internal/redis"
)

// destinationProgress sorts the destination after every snapped stop.
const destinationProgress = 1.1

// GeometryProvider returns road geometry between two stops.
type GeometryProvider interface {
	Route(ctx context.Context, from, to domain.Stop) (*domain.RouteGeometry, error)
}

// StopDirectory resolves stop names to coordinates.
type StopDirectory interface {
	Lookup(name string) (domain.Stop, bool)
	InBounds(b geo.Bounds) []domain.Stop
}

// NetworkGraph finds paths over the static adjacency graph.
type NetworkGraph interface {
	ShortestPath(from, to string) ([]string, bool)
}

// RouteMetrics records route resolution outcomes.
type RouteMetrics interface {
	RouteResolved(source domain.RouteSource)
	RouteProviderObserve(d time.Duration, ok bool)
}

// RouteResolverConfig contains route resolution settings.
type RouteResolverConfig struct {
	Timeout         time.Duration // Upper bound on one provider call
	CorridorWidthSq float64       // Squared degrees a stop may sit from the polyline
}

// RouteResolver turns an origin/destination pair into an ordered stop path.
// It never fails: provider trouble degrades to the static graph, then to a
// straight line.
type RouteResolver struct {
	provider  GeometryProvider
	directory StopDirectory
	graph     NetworkGraph
	cache     redis.RouteCacheInterface
	metrics   RouteMetrics
	config    RouteResolverConfig
}

// NewRouteResolver creates a new RouteResolver. cache and metrics may be nil.
func NewRouteResolver(
	provider GeometryProvider,
	directory StopDirectory,
	graph NetworkGraph,
	cache redis.RouteCacheInterface,
	metrics RouteMetrics,
	config RouteResolverConfig,
) *RouteResolver {
	return &RouteResolver{
		provider:  provider,
		directory: directory,
		graph:     graph,
		cache:     cache,
		metrics:   metrics,
		config:    config,
	}
}

// Resolve returns the path between origin and destination.
func (r *RouteResolver) Resolve(ctx context.Context, origin, destination string) domain.ResolvedPath {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)

	from, fromOK := r.directory.Lookup(origin)
	to, toOK := r.directory.Lookup(destination)
	if fromOK {
		origin = from.Name
	}
	if toOK {
		destination = to.Name
	}

	if strings.EqualFold(origin, destination) {
		return r.done(domain.ResolvedPath{
			Path:   []string{origin},
			Source: domain.RouteSourceSameStop,
		})
	}

	if fromOK && toOK && r.provider != nil {
		if resolved, ok := r.fromGeometry(ctx, from, to); ok {
			return r.done(resolved)
		}
	}

	return r.done(r.fallback(origin, destination, from, fromOK, to, toOK))
}

func (r *RouteResolver) done(resolved domain.ResolvedPath) domain.ResolvedPath {
	if r.metrics != nil {
		r.metrics.RouteResolved(resolved.Source)
	}
	return resolved
}

// fromGeometry resolves via the provider, consulting the cache first.
func (r *RouteResolver) fromGeometry(ctx context.Context, from, to domain.Stop) (domain.ResolvedPath, bool) {
	if r.cache != nil {
		cached, err := r.cache.GetRoute(ctx, from.Name, to.Name)
		if err != nil {
			log.Printf("[route] cache read failed for %s -> %s: %v", from.Name, to.Name, err)
		} else if cached != nil && len(cached.Path) > 0 {
			return *cached, true
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	start := time.Now()
	geom, err := r.provider.Route(callCtx, from, to)
	if err == nil && (geom == nil || len(geom.Coordinates) == 0) {
		err = errEmptyGeometry
	}
	if r.metrics != nil {
		r.metrics.RouteProviderObserve(time.Since(start), err == nil)
	}
	if err != nil {
		log.Printf("[route] geometry provider unavailable for %s -> %s, using fallback: %v", from.Name, to.Name, err)
		return domain.ResolvedPath{}, false
	}

	resolved := r.snapToCorridor(geom, from, to)

	if r.cache != nil {
		if err := r.cache.SetRoute(ctx, from.Name, to.Name, &resolved); err != nil {
			log.Printf("[route] cache write failed for %s -> %s: %v", from.Name, to.Name, err)
		}
	}
	return resolved, true
}

type placedStop struct {
	name     string
	progress float64
}

// snapToCorridor orders every known stop lying within the corridor of the
// polyline by its fractional progress along it.
func (r *RouteResolver) snapToCorridor(geom *domain.RouteGeometry, from, to domain.Stop) domain.ResolvedPath {
	coords := geom.Coordinates
	cum := geo.CumulativeKm(coords)
	total := cum[len(cum)-1]

	placed := []placedStop{{name: from.Name, progress: 0}}

	bounds, _ := geo.PolylineBounds(coords, math.Sqrt(r.config.CorridorWidthSq))
	for _, s := range r.directory.InBounds(bounds) {
		if s.Name == from.Name || s.Name == to.Name {
			continue
		}
		distSq, progress := nearestOnPolyline([2]float64{s.Lng, s.Lat}, coords, cum, total)
		if distSq < r.config.CorridorWidthSq {
			placed = append(placed, placedStop{name: s.Name, progress: progress})
		}
	}

	placed = append(placed, placedStop{name: to.Name, progress: destinationProgress})

	sort.SliceStable(placed, func(i, j int) bool {
		return placed[i].progress < placed[j].progress
	})

	seen := make(map[string]bool, len(placed))
	path := make([]string, 0, len(placed))
	for _, p := range placed {
		if seen[p.name] {
			continue
		}
		seen[p.name] = true
		path = append(path, p.name)
	}

	distance := geom.DistanceKm
	if distance <= 0 {
		distance = total
	}

	return domain.ResolvedPath{
		Path:       path,
		DistanceKm: distance,
		Source:     domain.RouteSourceGeometry,
	}
}

// nearestOnPolyline returns the minimum squared distance from p to the
// polyline and the fractional arc-length progress of that closest point.
// Ties keep the earliest segment.
func nearestOnPolyline(p [2]float64, coords [][2]float64, cum []float64, total float64) (float64, float64) {
	if len(coords) == 1 {
		distSq, _ := geo.ProjectOntoSegment(p, coords[0], coords[0])
		return distSq, 0
	}

	best := math.Inf(1)
	bestProgress := 0.0
	for i := 0; i+1 < len(coords); i++ {
		distSq, t := geo.ProjectOntoSegment(p, coords[i], coords[i+1])
		if distSq < best {
			best = distSq
			if total > 0 {
				along := cum[i] + t*(cum[i+1]-cum[i])
				bestProgress = along / total
			}
		}
	}
	return best, bestProgress
}

// fallback resolves over the static graph, then as a straight line.
func (r *RouteResolver) fallback(origin, destination string, from domain.Stop, fromOK bool, to domain.Stop, toOK bool) domain.ResolvedPath {
	if r.graph != nil {
		if path, ok := r.graph.ShortestPath(origin, destination); ok && len(path) > 0 {
			return domain.ResolvedPath{
				Path:       path,
				DistanceKm: r.pathDistance(path),
				Source:     domain.RouteSourceGraph,
			}
		}
	}

	distance := 0.0
	if fromOK && toOK {
		distance = geo.HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	}
	return domain.ResolvedPath{
		Path:       []string{origin, destination},
		DistanceKm: distance,
		Source:     domain.RouteSourceStraightLine,
	}
}

// pathDistance sums great-circle legs between consecutive known stops.
func (r *RouteResolver) pathDistance(path []string) float64 {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		a, okA := r.directory.Lookup(path[i])
		b, okB := r.directory.Lookup(path[i+1])
		if okA && okB {
			total += geo.HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
		}
	}
	return total
}
