package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"villagelink/internal/domain"
	"villagelink/internal/service"
)

// PassHandler handles HTTP requests for travel passes.
type PassHandler struct {
	passService *service.PassService
}

// NewPassHandler creates a new PassHandler.
func NewPassHandler(passService *service.PassService) *PassHandler {
	return &PassHandler{passService: passService}
}

// PurchasePassRequest is the HTTP request body for buying a pass.
type PurchasePassRequest struct {
	UserID       string `json:"user_id"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Type         string `json:"type"` // MONTHLY, STUDENT, VIDYA_VAHAN
	ValidityDays int    `json:"validity_days"`
	Price        int64  `json:"price"`
}

// PassResponse is the HTTP response for pass data.
type PassResponse struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	Type         string   `json:"type"`
	ValidityDays int      `json:"validity_days"`
	Price        int64    `json:"price"`
	UsedDates    []string `json:"used_dates"`
	PurchasedAt  string   `json:"purchased_at"`
	ExpiresAt    string   `json:"expires_at"`
	NFTTokenID   string   `json:"nft_token_id"`
}

// VerifyPassResponse is the HTTP response for a boarding check.
type VerifyPassResponse struct {
	Success bool          `json:"success"`
	Reason  string        `json:"reason,omitempty"`
	Pass    *PassResponse `json:"pass,omitempty"`
}

func toPassResponse(p *domain.Pass) *PassResponse {
	used := p.UsedDates
	if used == nil {
		used = []string{}
	}
	return &PassResponse{
		ID:           p.ID,
		UserID:       p.UserID,
		Origin:       p.Origin,
		Destination:  p.Destination,
		Type:         string(p.Type),
		ValidityDays: p.ValidityDays,
		Price:        p.Price,
		UsedDates:    used,
		PurchasedAt:  p.PurchasedAt.Format(time.RFC3339),
		ExpiresAt:    p.ExpiresAt.Format(time.RFC3339),
		NFTTokenID:   p.NFTTokenID,
	}
}

// Purchase handles POST /v1/passes
func (h *PassHandler) Purchase(c *gin.Context) {
	var req PurchasePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	pass, err := h.passService.Purchase(c.Request.Context(), service.PurchasePassRequest{
		UserID:       req.UserID,
		Origin:       req.Origin,
		Destination:  req.Destination,
		Type:         domain.PassType(req.Type),
		ValidityDays: req.ValidityDays,
		Price:        req.Price,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toPassResponse(pass))
}

// ListByUser handles GET /v1/passes?user_id=
func (h *PassHandler) ListByUser(c *gin.Context) {
	passes, err := h.passService.ListByUser(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]*PassResponse, 0, len(passes))
	for _, p := range passes {
		response = append(response, toPassResponse(p))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetPass handles GET /v1/passes/:id
func (h *PassHandler) GetPass(c *gin.Context) {
	pass, err := h.passService.GetPass(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPassResponse(pass))
}

// Verify handles POST /v1/passes/:id/verify. A pass that cannot board is
// reported with success false and a reason.
func (h *PassHandler) Verify(c *gin.Context) {
	result, err := h.passService.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := VerifyPassResponse{Success: result.Success, Reason: result.Reason}
	if result.Pass != nil {
		response.Pass = toPassResponse(result.Pass)
	}
	respondJSON(c, http.StatusOK, response)
}
