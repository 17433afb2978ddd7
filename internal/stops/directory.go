// Package stops is the stop directory: name to coordinates lookup plus the
// spatial indexes used for corridor prefiltering and proximity search.
package stops

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dhconnelly/rtreego"
	"github.com/mmcloughlin/geohash"

	"villagelink/internal/domain"
	"villagelink/internal/geo"
)

// A precision-5 cell is about 4.9 km tall and 4.4 km wide at this latitude,
// so a cell and its eight neighbours cover any radius up to geohashCellKm.
const (
	geohashPrecision = 5
	geohashCellKm    = 4.0
)

// NearbyStop is a stop with its distance from a query point.
type NearbyStop struct {
	Stop       domain.Stop
	DistanceKm float64
}

// Directory is an immutable, ordered stop directory. Order is the dataset
// scan order and is what every "stable" tie-break refers to.
type Directory struct {
	stops   []domain.Stop
	byName  map[string]int
	byFold  map[string]int
	tree    *rtreego.Rtree
	buckets map[string][]int
}

// stopEntry adapts a directory index to rtreego.Spatial.
type stopEntry struct {
	idx  int
	rect rtreego.Rect
}

func (e *stopEntry) Bounds() rtreego.Rect {
	return e.rect
}

// NewDirectory builds a directory. Stop names must be unique.
func NewDirectory(stops []domain.Stop) (*Directory, error) {
	d := &Directory{
		stops:   make([]domain.Stop, 0, len(stops)),
		byName:  make(map[string]int, len(stops)),
		byFold:  make(map[string]int, len(stops)),
		tree:    rtreego.NewTree(2, 25, 50),
		buckets: make(map[string][]int),
	}

	for _, s := range stops {
		if _, dup := d.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate stop name %q", s.Name)
		}
		idx := len(d.stops)
		d.stops = append(d.stops, s)
		d.byName[s.Name] = idx
		if _, ok := d.byFold[strings.ToLower(s.Name)]; !ok {
			d.byFold[strings.ToLower(s.Name)] = idx
		}

		d.tree.Insert(&stopEntry{idx: idx, rect: rtreego.Point{s.Lng, s.Lat}.ToRect(1e-9)})

		hash := geohash.EncodeWithPrecision(s.Lat, s.Lng, geohashPrecision)
		d.buckets[hash] = append(d.buckets[hash], idx)
	}

	return d, nil
}

// Lookup finds a stop by display name, falling back to a case-insensitive match.
func (d *Directory) Lookup(name string) (domain.Stop, bool) {
	if idx, ok := d.byName[name]; ok {
		return d.stops[idx], true
	}
	if idx, ok := d.byFold[strings.ToLower(strings.TrimSpace(name))]; ok {
		return d.stops[idx], true
	}
	return domain.Stop{}, false
}

// All returns every stop in scan order.
func (d *Directory) All() []domain.Stop {
	return append([]domain.Stop(nil), d.stops...)
}

// Len returns the number of stops.
func (d *Directory) Len() int {
	return len(d.stops)
}

// InBounds returns the stops inside b, in scan order.
func (d *Directory) InBounds(b geo.Bounds) []domain.Stop {
	width := math.Max(b.MaxLng-b.MinLng, 1e-9)
	height := math.Max(b.MaxLat-b.MinLat, 1e-9)
	query, err := rtreego.NewRect(rtreego.Point{b.MinLng, b.MinLat}, []float64{width, height})
	if err != nil {
		return nil
	}

	hits := d.tree.SearchIntersect(query)
	idxs := make([]int, 0, len(hits))
	for _, h := range hits {
		idxs = append(idxs, h.(*stopEntry).idx)
	}
	sort.Ints(idxs)

	out := make([]domain.Stop, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, d.stops[i])
	}
	return out
}

// Nearby returns stops within radiusKm of the point, closest first.
// Small radii are served from the geohash buckets around the point.
func (d *Directory) Nearby(lat, lng, radiusKm float64) []NearbyStop {
	if radiusKm <= 0 {
		return nil
	}

	var candidates []int
	if radiusKm <= geohashCellKm {
		hash := geohash.EncodeWithPrecision(lat, lng, geohashPrecision)
		cells := append([]string{hash}, geohash.Neighbors(hash)...)
		for _, c := range cells {
			candidates = append(candidates, d.buckets[c]...)
		}
	} else {
		candidates = make([]int, len(d.stops))
		for i := range d.stops {
			candidates[i] = i
		}
	}

	out := make([]NearbyStop, 0, len(candidates))
	for _, i := range candidates {
		s := d.stops[i]
		dist := geo.HaversineKm(lat, lng, s.Lat, s.Lng)
		if dist <= radiusKm {
			out = append(out, NearbyStop{Stop: s, DistanceKm: dist})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

// Nearest returns the closest stop to the point.
func (d *Directory) Nearest(lat, lng float64) (NearbyStop, bool) {
	if near := d.Nearby(lat, lng, geohashCellKm); len(near) > 0 {
		return near[0], true
	}
	var best NearbyStop
	found := false
	for _, s := range d.stops {
		dist := geo.HaversineKm(lat, lng, s.Lat, s.Lng)
		if !found || dist < best.DistanceKm {
			best = NearbyStop{Stop: s, DistanceKm: dist}
			found = true
		}
	}
	return best, found
}
