package stops

import (
	"strings"
	"testing"

	"villagelink/internal/domain"
	"villagelink/internal/geo"
)

func loadDefault(t *testing.T) *Directory {
	t.Helper()
	ds, err := LoadDataset("")
	if err != nil {
		t.Fatalf("unexpected error loading dataset: %v", err)
	}
	dir, err := NewDirectory(ds.DomainStops())
	if err != nil {
		t.Fatalf("unexpected error building directory: %v", err)
	}
	return dir
}

func TestLoadDataset_Default(t *testing.T) {
	t.Parallel()

	ds, err := LoadDataset("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Stops) == 0 || len(ds.Network) == 0 {
		t.Fatalf("expected stops and network, got %d stops %d nodes", len(ds.Stops), len(ds.Network))
	}
	if ds.Stops[0].Name != "Sasaram" {
		t.Errorf("expected first stop Sasaram, got %s", ds.Stops[0].Name)
	}
}

func TestParseDataset_Invalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no stops",
			yaml:    "stops: []\n",
			wantErr: "validate",
		},
		{
			name:    "latitude out of range",
			yaml:    "stops:\n  - name: X\n    lat: 95\n    lng: 84\n",
			wantErr: "validate",
		},
		{
			name:    "unknown connection",
			yaml:    "stops:\n  - name: X\n    lat: 25\n    lng: 84\nnetwork:\n  - key: x\n    name: X\n    connections: [y]\n",
			wantErr: "unknown key",
		},
		{
			name:    "bad yaml",
			yaml:    "stops: [",
			wantErr: "decode",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseDataset([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNewDirectory_DuplicateName(t *testing.T) {
	t.Parallel()

	_, err := NewDirectory([]domain.Stop{{Name: "A"}, {Name: "A"}})
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestDirectory_Lookup(t *testing.T) {
	t.Parallel()

	dir := loadDefault(t)

	s, ok := dir.Lookup("Dehri-on-Sone")
	if !ok || s.Lat != 24.9026 {
		t.Fatalf("expected Dehri-on-Sone, got %+v ok=%v", s, ok)
	}
	if _, ok := dir.Lookup("dehri-on-sone"); !ok {
		t.Error("expected case-insensitive lookup to succeed")
	}
	if _, ok := dir.Lookup("Atlantis"); ok {
		t.Error("expected unknown stop lookup to fail")
	}
}

func TestDirectory_InBounds_ScanOrder(t *testing.T) {
	t.Parallel()

	dir := loadDefault(t)
	b := geo.Bounds{MinLng: 84.10, MinLat: 24.85, MaxLng: 84.25, MaxLat: 24.95}
	got := dir.InBounds(b)

	want := []string{"Dehri-on-Sone", "Sakhara", "Suara", "Pahleza"}
	if len(got) != len(want) {
		t.Fatalf("expected %d stops, got %d: %+v", len(want), len(got), got)
	}
	for i, s := range got {
		if s.Name != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], s.Name)
		}
	}
}

func TestDirectory_Nearby(t *testing.T) {
	t.Parallel()

	dir := loadDefault(t)

	near := dir.Nearby(24.9030, 84.1820, 4)
	if len(near) == 0 || near[0].Stop.Name != "Dehri-on-Sone" {
		t.Fatalf("expected Dehri-on-Sone first, got %+v", near)
	}
	for i := 1; i < len(near); i++ {
		if near[i].DistanceKm < near[i-1].DistanceKm {
			t.Error("expected results sorted by distance")
		}
	}

	wide := dir.Nearby(24.9490, 84.0153, 500)
	if len(wide) != dir.Len() {
		t.Errorf("expected all %d stops in a 500 km radius, got %d", dir.Len(), len(wide))
	}

	if got := dir.Nearby(24.9, 84.1, 0); got != nil {
		t.Errorf("expected nil for zero radius, got %+v", got)
	}
}

func TestDirectory_Nearest(t *testing.T) {
	t.Parallel()

	dir := loadDefault(t)

	n, ok := dir.Nearest(24.95, 84.02)
	if !ok || n.Stop.Name != "Sasaram" {
		t.Fatalf("expected Sasaram, got %+v", n)
	}

	// Far from every bucket, still resolves by full scan.
	far, ok := dir.Nearest(26.0, 85.0)
	if !ok || far.Stop.Name == "" {
		t.Fatal("expected a nearest stop for a distant point")
	}
}
