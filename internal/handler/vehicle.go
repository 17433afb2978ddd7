package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"villagelink/internal/domain"
	"villagelink/internal/fleet"
	"villagelink/internal/service"
)

const defaultVehicleRadiusKm = 10.0

// VehicleHandler handles HTTP requests from and about operators.
type VehicleHandler struct {
	vehicleService *service.VehicleService
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(vehicleService *service.VehicleService) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService}
}

// RegisterVehicleRequest is the HTTP request body for bringing an operator online.
type RegisterVehicleRequest struct {
	OperatorID   string   `json:"operator_id"`
	OperatorName string   `json:"operator_name"`
	VehicleType  string   `json:"vehicle_type"`
	Capacity     int      `json:"capacity"`
	Origin       string   `json:"origin,omitempty"`
	Destination  string   `json:"destination,omitempty"`
	Path         []string `json:"path,omitempty"`
	Lat          float64  `json:"lat,omitempty"`
	Lng          float64  `json:"lng,omitempty"`
}

// UpdateLocationRequest is the HTTP request body for a telemetry update. It
// carries the operator's full record.
type UpdateLocationRequest struct {
	OperatorName     string   `json:"operator_name"`
	VehicleType      string   `json:"vehicle_type"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Heading          float64  `json:"heading"`
	SpeedKmh         float64  `json:"speed_kmh"`
	Timestamp        int64    `json:"timestamp,omitempty"` // unix milliseconds
	Path             []string `json:"path"`
	CurrentStopIndex int      `json:"current_stop_index"`
	Capacity         int      `json:"capacity"`
	Occupancy        int      `json:"occupancy"`
	Status           string   `json:"status"`
}

// NearbyVehicleResponse is a vehicle with its distance from the query point.
type NearbyVehicleResponse struct {
	fleet.VehicleView
	DistanceKm float64 `json:"distance_km"`
}

// Register handles POST /v1/vehicles/register
func (h *VehicleHandler) Register(c *gin.Context) {
	var req RegisterVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	state, err := h.vehicleService.Register(c.Request.Context(), service.RegisterVehicleRequest{
		OperatorID:   req.OperatorID,
		OperatorName: req.OperatorName,
		VehicleType:  req.VehicleType,
		Capacity:     req.Capacity,
		Origin:       req.Origin,
		Destination:  req.Destination,
		Path:         req.Path,
		Lat:          req.Lat,
		Lng:          req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, fleet.NewVehicleView(state))
}

// UpdateLocation handles POST /v1/vehicles/:id/location
func (h *VehicleHandler) UpdateLocation(c *gin.Context) {
	operatorID := c.Param("id")

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	status := domain.VehicleStatus(req.Status)
	switch status {
	case "", domain.VehicleStatusEnRoute, domain.VehicleStatusDelayed, domain.VehicleStatusIdle, domain.VehicleStatusMaintenance:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status"})
		return
	}

	var ts time.Time
	if req.Timestamp > 0 {
		ts = time.UnixMilli(req.Timestamp)
	}

	state, err := h.vehicleService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		OperatorID:       operatorID,
		OperatorName:     req.OperatorName,
		VehicleType:      req.VehicleType,
		Lat:              req.Lat,
		Lng:              req.Lng,
		Heading:          req.Heading,
		SpeedKmh:         req.SpeedKmh,
		Timestamp:        ts,
		Path:             req.Path,
		CurrentStopIndex: req.CurrentStopIndex,
		Capacity:         req.Capacity,
		Occupancy:        req.Occupancy,
		Status:           status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, fleet.NewVehicleView(state))
}

// Disconnect handles POST /v1/vehicles/:id/disconnect
func (h *VehicleHandler) Disconnect(c *gin.Context) {
	operatorID := c.Param("id")

	known, err := h.vehicleService.Disconnect(c.Request.Context(), operatorID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"operator_id":  operatorID,
		"disconnected": known,
	})
}

// GetAll handles GET /v1/vehicles
func (h *VehicleHandler) GetAll(c *gin.Context) {
	vehicles := h.vehicleService.List()
	response := make([]fleet.VehicleView, 0, len(vehicles))
	for _, v := range vehicles {
		response = append(response, fleet.NewVehicleView(v))
	}
	respondJSON(c, http.StatusOK, response)
}

// Nearby handles GET /v1/vehicles/nearby?lat=&lng=&radius_km=
func (h *VehicleHandler) Nearby(c *gin.Context) {
	lat, ok := queryFloat(c, "lat")
	if !ok {
		return
	}
	lng, ok := queryFloat(c, "lng")
	if !ok {
		return
	}
	radius := defaultVehicleRadiusKm
	if c.Query("radius_km") != "" {
		if radius, ok = queryFloat(c, "radius_km"); !ok {
			return
		}
	}

	found, err := h.vehicleService.Nearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NearbyVehicleResponse, 0, len(found))
	for _, n := range found {
		response = append(response, NearbyVehicleResponse{
			VehicleView: fleet.NewVehicleView(n.Vehicle),
			DistanceKm:  n.DistanceKm,
		})
	}
	respondJSON(c, http.StatusOK, response)
}
