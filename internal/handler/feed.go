package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"villagelink/internal/domain"
	"villagelink/internal/feed"
)

// VehicleLister lists live vehicles.
type VehicleLister interface {
	Vehicles() []domain.VehicleState
}

// FeedHandler serves the GTFS-realtime export.
type FeedHandler struct {
	vehicles VehicleLister
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(vehicles VehicleLister) *FeedHandler {
	return &FeedHandler{vehicles: vehicles}
}

// VehiclePositions handles GET /v1/feed/vehicle-positions?format=json
func (h *FeedHandler) VehiclePositions(c *gin.Context) {
	msg := feed.BuildVehiclePositions(h.vehicles.Vehicles(), time.Now())

	body, contentType, err := feed.Encode(msg, c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, body)
}
