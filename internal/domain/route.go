package domain

// RouteSource records which strategy produced a resolved path.
type RouteSource string

const (
	RouteSourceSameStop     RouteSource = "same_stop"
	RouteSourceGeometry     RouteSource = "geometry"
	RouteSourceGraph        RouteSource = "graph"
	RouteSourceStraightLine RouteSource = "straight_line"
)

// RouteGeometry is the polyline returned by the routing provider.
// Coordinates are [lng, lat] pairs.
type RouteGeometry struct {
	Coordinates [][2]float64
	DistanceKm  float64
}

// ResolvedPath is the ordered list of stop names between two endpoints.
// Path is never empty: the first element is the origin, the last the destination.
type ResolvedPath struct {
	Path       []string
	DistanceKm float64
	Source     RouteSource
}
