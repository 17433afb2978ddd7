package tests

import (
	"testing"
	"time"

	"villagelink/internal/service"
)

// ──────────────────────────────────────────────
// 2. FARE ENGINE
// ──────────────────────────────────────────────

func TestFareQuote_Bands(t *testing.T) {
	t.Parallel()

	engine := service.NewFareEngine(service.DefaultFareConfig(), time.UTC)

	testCases := []struct {
		name      string
		km        float64
		hour      int
		wantTotal int64
		wantLabel string
	}{
		{name: "rush morning", km: 10, hour: 9, wantTotal: 85, wantLabel: service.FareLabelRushHour},
		{name: "rush window start", km: 10, hour: 8, wantTotal: 85, wantLabel: service.FareLabelRushHour},
		{name: "rush window end", km: 10, hour: 19, wantTotal: 85, wantLabel: service.FareLabelRushHour},
		{name: "after morning rush", km: 10, hour: 11, wantTotal: 70, wantLabel: ""},
		{name: "happy hour", km: 10, hour: 14, wantTotal: 60, wantLabel: service.FareLabelHappyHour},
		{name: "happy window end", km: 10, hour: 15, wantTotal: 60, wantLabel: service.FareLabelHappyHour},
		{name: "before evening rush", km: 10, hour: 16, wantTotal: 70, wantLabel: ""},
		{name: "rounds up to five", km: 1, hour: 0, wantTotal: 20, wantLabel: ""},
		{name: "fractional distance", km: 2.5, hour: 9, wantTotal: 30, wantLabel: service.FareLabelRushHour},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			q := engine.Quote(tc.km, tc.hour)
			if q.Total != tc.wantTotal {
				t.Errorf("total = %d, want %d", q.Total, tc.wantTotal)
			}
			if q.Label != tc.wantLabel {
				t.Errorf("label = %q, want %q", q.Label, tc.wantLabel)
			}
			if q.Total%5 != 0 {
				t.Errorf("total %d is not a multiple of 5", q.Total)
			}
		})
	}
}

func TestFareQuote_ZeroDistanceSameEveryHour(t *testing.T) {
	t.Parallel()

	engine := service.NewFareEngine(service.DefaultFareConfig(), time.UTC)
	want := engine.Quote(0, 0).Total

	for hour := 0; hour < 24; hour++ {
		if got := engine.Quote(0, hour).Total; got != want {
			t.Errorf("hour %d: total = %d, want %d", hour, got, want)
		}
	}
}

func TestFareQuote_Monotonic(t *testing.T) {
	t.Parallel()

	engine := service.NewFareEngine(service.DefaultFareConfig(), time.UTC)
	for hour := 0; hour < 24; hour++ {
		prev := int64(0)
		for km := 0.0; km <= 40; km += 0.25 {
			got := engine.Quote(km, hour).Total
			if got < prev {
				t.Fatalf("hour %d: fare dropped from %d to %d at %.2f km", hour, prev, got, km)
			}
			prev = got
		}
	}
}

func TestFareQuoteAt_UsesConfiguredZone(t *testing.T) {
	t.Parallel()

	ist := time.FixedZone("IST", 5*3600+1800)
	engine := service.NewFareEngine(service.DefaultFareConfig(), ist)

	// 03:30 UTC is 09:00 in India.
	q := engine.QuoteAt(10, time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC))
	if q.Hour != 9 || q.Label != service.FareLabelRushHour || q.Total != 85 {
		t.Errorf("got hour %d label %q total %d", q.Hour, q.Label, q.Total)
	}
}
