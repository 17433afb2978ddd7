package osrm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"villagelink/internal/domain"
)

var (
	sasaram = domain.Stop{Name: "Sasaram", Lat: 24.9490, Lng: 84.0153}
	dehri   = domain.Stop{Name: "Dehri-on-Sone", Lat: 24.9026, Lng: 84.1822}
)

func TestRoute_Success(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":18250.5,"geometry":{"coordinates":[[84.0153,24.949],[84.1,24.93],[84.1822,24.9026]]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	geom, err := c.Route(context.Background(), sasaram, dehri)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(gotPath, "/route/v1/driving/84.015300,24.949000;84.182200,24.902600") {
		t.Errorf("unexpected request path %s", gotPath)
	}
	if len(geom.Coordinates) != 3 {
		t.Fatalf("expected 3 vertices, got %d", len(geom.Coordinates))
	}
	if math.Abs(geom.DistanceKm-18.2505) > 1e-9 {
		t.Errorf("expected 18.2505 km, got %f", geom.DistanceKm)
	}
	if geom.Coordinates[2] != [2]float64{84.1822, 24.9026} {
		t.Errorf("unexpected last vertex %v", geom.Coordinates[2])
	}
}

func TestRoute_Failures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "no route code", status: http.StatusOK, body: `{"code":"NoRoute","message":"Impossible route"}`, wantErr: ErrNoRoute},
		{name: "empty routes", status: http.StatusOK, body: `{"code":"Ok","routes":[]}`, wantErr: ErrNoRoute},
		{name: "zero vertices", status: http.StatusOK, body: `{"code":"Ok","routes":[{"distance":10,"geometry":{"coordinates":[]}}]}`, wantErr: ErrEmptyGeometry},
		{name: "malformed json", status: http.StatusOK, body: `{"code":`},
		{name: "malformed coordinate", status: http.StatusOK, body: `{"code":"Ok","routes":[{"distance":10,"geometry":{"coordinates":[[84.0]]}}]}`},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Route(context.Background(), sasaram, dehri)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRoute_ContextDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewClient(srv.URL).Route(ctx, sasaram, dehri)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("request did not honour the context deadline")
	}
}
