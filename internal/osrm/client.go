// Package osrm is the route geometry provider backed by an OSRM-compatible
// HTTP routing service.
package osrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"villagelink/internal/domain"
)

var (
	// ErrNoRoute is returned when the provider answers without a usable route.
	ErrNoRoute = errors.New("osrm: no route")

	// ErrEmptyGeometry is returned when the route has no vertices.
	ErrEmptyGeometry = errors.New("osrm: empty geometry")
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 8 << 20

// Client requests driving routes with full GeoJSON geometry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for baseURL. Requests are traced by New Relic
// when the request context carries a transaction. Callers bound each call
// with their own context deadline.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"` // meters
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route fetches the driving geometry between two points.
func (c *Client) Route(ctx context.Context, from, to domain.Stop) (*domain.RouteGeometry, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("osrm: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("osrm: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm: unexpected status %d", resp.StatusCode)
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("osrm: decode response: %w", err)
	}
	if rr.Code != "Ok" || len(rr.Routes) == 0 {
		return nil, fmt.Errorf("%w: code=%s %s", ErrNoRoute, rr.Code, rr.Message)
	}

	route := rr.Routes[0]
	geom := &domain.RouteGeometry{
		Coordinates: make([][2]float64, 0, len(route.Geometry.Coordinates)),
		DistanceKm:  route.Distance / 1000,
	}
	for _, pt := range route.Geometry.Coordinates {
		if len(pt) < 2 {
			return nil, fmt.Errorf("osrm: malformed coordinate %v", pt)
		}
		geom.Coordinates = append(geom.Coordinates, [2]float64{pt[0], pt[1]})
	}
	if len(geom.Coordinates) == 0 {
		return nil, ErrEmptyGeometry
	}

	return geom, nil
}
