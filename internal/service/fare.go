package service

import (
	"math"
	"time"

	"villagelink/internal/domain"
)

// Fare band labels.
const (
	FareLabelRushHour  = "Rush Hour"
	FareLabelHappyHour = "Happy Hour"
)

// FareConfig contains the fare schedule.
type FareConfig struct {
	FixedCharge     float64 // Flat charge per trip
	PerKmRate       float64 // Charge per kilometer
	RushMultiplier  float64 // Applied in RushWindows
	HappyMultiplier float64 // Applied in HappyWindows
	RoundTo         float64 // Totals round up to a multiple of this
	MinimumFare     int64   // Floor applied after rounding
	RushWindows     [][2]int
	HappyWindows    [][2]int
}

// DefaultFareConfig returns the default fare schedule. The minimum fare
// equals the rounded rush-hour fixed charge, so a zero-distance trip costs the
// same at every hour.
func DefaultFareConfig() FareConfig {
	return FareConfig{
		FixedCharge:     10,
		PerKmRate:       6,
		RushMultiplier:  1.2,
		HappyMultiplier: 0.85,
		RoundTo:         5,
		MinimumFare:     15,
		RushWindows:     [][2]int{{8, 10}, {17, 19}},
		HappyWindows:    [][2]int{{13, 15}},
	}
}

// FareEngine prices trips by distance and time of day. It is pure.
type FareEngine struct {
	config   FareConfig
	location *time.Location
}

// NewFareEngine creates a FareEngine. Timestamps are converted to hours in loc.
func NewFareEngine(config FareConfig, loc *time.Location) *FareEngine {
	if loc == nil {
		loc = time.UTC
	}
	return &FareEngine{config: config, location: loc}
}

// Quote prices a trip of distanceKm starting at hourOfDay (0-23).
func (e *FareEngine) Quote(distanceKm float64, hourOfDay int) domain.FareQuote {
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		distanceKm = 0
	}
	base := e.config.FixedCharge + distanceKm*e.config.PerKmRate
	multiplier, label := e.band(hourOfDay)

	// The epsilon keeps products like 12.5*1.2 from rounding up a whole step.
	steps := math.Ceil(base*multiplier/e.config.RoundTo - 1e-9)
	total := int64(steps * e.config.RoundTo)
	if total < e.config.MinimumFare {
		total = e.config.MinimumFare
	}

	return domain.FareQuote{
		DistanceKm:      distanceKm,
		Hour:            hourOfDay,
		Base:            base,
		SurgeMultiplier: multiplier,
		Label:           label,
		Total:           total,
	}
}

// QuoteAt prices a trip starting at t in the engine's time zone.
func (e *FareEngine) QuoteAt(distanceKm float64, t time.Time) domain.FareQuote {
	return e.Quote(distanceKm, t.In(e.location).Hour())
}

// band determines the multiplier and label for an hour.
func (e *FareEngine) band(hour int) (float64, string) {
	switch {
	case inWindows(hour, e.config.RushWindows):
		return e.config.RushMultiplier, FareLabelRushHour
	case inWindows(hour, e.config.HappyWindows):
		return e.config.HappyMultiplier, FareLabelHappyHour
	default:
		return 1.0, ""
	}
}

func inWindows(hour int, windows [][2]int) bool {
	for _, w := range windows {
		if hour >= w[0] && hour <= w[1] {
			return true
		}
	}
	return false
}
