package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"villagelink/internal/domain"
	"villagelink/internal/stops"
)

const defaultStopRadiusKm = 5.0

// StopHandler handles HTTP requests for the stop directory.
type StopHandler struct {
	directory *stops.Directory
}

// NewStopHandler creates a new StopHandler.
func NewStopHandler(directory *stops.Directory) *StopHandler {
	return &StopHandler{directory: directory}
}

// StopResponse is the HTTP response for a stop.
type StopResponse struct {
	Name        string   `json:"name"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Block       string   `json:"block,omitempty"`
	Panchayat   string   `json:"panchayat,omitempty"`
	VillageCode string   `json:"village_code,omitempty"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
}

func toStopResponse(s domain.Stop) StopResponse {
	return StopResponse{
		Name:        s.Name,
		Lat:         s.Lat,
		Lng:         s.Lng,
		Block:       s.Block,
		Panchayat:   s.Panchayat,
		VillageCode: s.VillageCode,
	}
}

// List handles GET /v1/stops
func (h *StopHandler) List(c *gin.Context) {
	all := h.directory.All()
	response := make([]StopResponse, 0, len(all))
	for _, s := range all {
		response = append(response, toStopResponse(s))
	}
	respondJSON(c, http.StatusOK, response)
}

// Nearby handles GET /v1/stops/nearby?lat=&lng=&radius_km=
func (h *StopHandler) Nearby(c *gin.Context) {
	lat, ok := queryFloat(c, "lat")
	if !ok {
		return
	}
	lng, ok := queryFloat(c, "lng")
	if !ok {
		return
	}
	radius := defaultStopRadiusKm
	if c.Query("radius_km") != "" {
		if radius, ok = queryFloat(c, "radius_km"); !ok {
			return
		}
	}

	found := h.directory.Nearby(lat, lng, radius)
	response := make([]StopResponse, 0, len(found))
	for _, n := range found {
		r := toStopResponse(n.Stop)
		d := n.DistanceKm
		r.DistanceKm = &d
		response = append(response, r)
	}
	respondJSON(c, http.StatusOK, response)
}
