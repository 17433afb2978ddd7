package domain

// FareQuote is the priced result of a distance at a given hour.
type FareQuote struct {
	DistanceKm      float64
	Hour            int
	Base            float64
	SurgeMultiplier float64
	Label           string // "Rush Hour", "Happy Hour" or empty
	Total           int64
}
