package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"villagelink/internal/domain"
	"villagelink/internal/fleet"
	"villagelink/internal/service"
)

// TicketHandler handles HTTP requests for tickets.
type TicketHandler struct {
	ticketService *service.TicketService
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(ticketService *service.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// BookTicketRequest is the HTTP request body for booking a ticket.
type BookTicketRequest struct {
	PassengerID    string `json:"passenger_id"`
	OperatorID     string `json:"operator_id,omitempty"`
	Origin         string `json:"origin"`
	Destination    string `json:"destination"`
	PassengerCount int    `json:"passenger_count,omitempty"`
	PaymentMethod  string `json:"payment_method,omitempty"` // CASH, ONLINE, GRAMCOIN, NONE
}

// UpdateTicketStatusRequest is the HTTP request body for a status change.
type UpdateTicketStatusRequest struct {
	Status        string `json:"status"`
	OperatorID    string `json:"operator_id,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// Book handles POST /v1/tickets
func (h *TicketHandler) Book(c *gin.Context) {
	var req BookTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ticket, err := h.ticketService.Book(c.Request.Context(), service.BookTicketRequest{
		PassengerID:    req.PassengerID,
		OperatorID:     req.OperatorID,
		Origin:         req.Origin,
		Destination:    req.Destination,
		PassengerCount: req.PassengerCount,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, fleet.NewTicketView(*ticket))
}

// UpdateStatus handles POST /v1/tickets/:id/status
func (h *TicketHandler) UpdateStatus(c *gin.Context) {
	var req UpdateTicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Status == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "status is required"})
		return
	}

	ticket, err := h.ticketService.UpdateStatus(c.Request.Context(), service.UpdateTicketStatusRequest{
		TicketID:      c.Param("id"),
		Status:        domain.TicketStatus(req.Status),
		OperatorID:    req.OperatorID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, fleet.NewTicketView(*ticket))
}

// GetTicket handles GET /v1/tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ticket, err := h.ticketService.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, fleet.NewTicketView(*ticket))
}

// ListByPassenger handles GET /v1/tickets?passenger_id=
func (h *TicketHandler) ListByPassenger(c *gin.Context) {
	tickets, err := h.ticketService.ListByPassenger(c.Request.Context(), c.Query("passenger_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]fleet.TicketView, 0, len(tickets))
	for _, t := range tickets {
		response = append(response, fleet.NewTicketView(*t))
	}
	respondJSON(c, http.StatusOK, response)
}
