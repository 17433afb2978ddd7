// Package geo holds the small amount of spherical and planar geometry the
// route resolver and fleet hub need.
package geo

import "math"

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// CumulativeKm returns the arc length from the first vertex to every vertex
// of a [lng, lat] polyline.
func CumulativeKm(coords [][2]float64) []float64 {
	n := len(coords)
	if n == 0 {
		return nil
	}
	cum := make([]float64, n)
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += HaversineKm(coords[i-1][1], coords[i-1][0], coords[i][1], coords[i][0])
		cum[i] = sum
	}
	return cum
}

// ProjectOntoSegment projects p onto the segment v→w in planar degree space.
// It returns the squared distance from p to the projection and the clamped
// segment parameter t in [0, 1]. A degenerate segment projects onto v.
func ProjectOntoSegment(p, v, w [2]float64) (distSq, t float64) {
	dx := w[0] - v[0]
	dy := w[1] - v[1]
	l2 := dx*dx + dy*dy
	if l2 > 0 {
		t = ((p[0]-v[0])*dx + (p[1]-v[1])*dy) / l2
		t = math.Max(0, math.Min(1, t))
	}
	px := v[0] + t*dx
	py := v[1] + t*dy
	ex := p[0] - px
	ey := p[1] - py
	return ex*ex + ey*ey, t
}

// Bounds is an axis-aligned [lng, lat] box.
type Bounds struct {
	MinLng, MinLat float64
	MaxLng, MaxLat float64
}

// PolylineBounds returns the bounding box of coords expanded by pad degrees
// on every side. ok is false for an empty polyline.
func PolylineBounds(coords [][2]float64, pad float64) (b Bounds, ok bool) {
	if len(coords) == 0 {
		return Bounds{}, false
	}
	b = Bounds{MinLng: coords[0][0], MaxLng: coords[0][0], MinLat: coords[0][1], MaxLat: coords[0][1]}
	for _, c := range coords[1:] {
		b.MinLng = math.Min(b.MinLng, c[0])
		b.MaxLng = math.Max(b.MaxLng, c[0])
		b.MinLat = math.Min(b.MinLat, c[1])
		b.MaxLat = math.Max(b.MaxLat, c[1])
	}
	b.MinLng -= pad
	b.MinLat -= pad
	b.MaxLng += pad
	b.MaxLat += pad
	return b, true
}

// ValidLatitude reports whether lat is within [-90, 90].
func ValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lng is within [-180, 180].
func ValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
