package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"villagelink/internal/domain"
	"villagelink/internal/service"
)

// RouteHandler handles HTTP requests for route resolution and fare quotes.
type RouteHandler struct {
	resolver *service.RouteResolver
	fares    *service.FareEngine
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(resolver *service.RouteResolver, fares *service.FareEngine) *RouteHandler {
	return &RouteHandler{resolver: resolver, fares: fares}
}

// ResolveResponse is the HTTP response for a resolved route.
type ResolveResponse struct {
	Path       []string `json:"path"`
	DistanceKm float64  `json:"distance_km"`
	Source     string   `json:"source"`
}

// FareQuoteResponse is the HTTP response for a fare quote.
type FareQuoteResponse struct {
	DistanceKm      float64 `json:"distance_km"`
	Hour            int     `json:"hour"`
	Base            float64 `json:"base"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	Label           string  `json:"label,omitempty"`
	Total           int64   `json:"total"`
}

// Resolve handles GET /v1/routes/resolve?from=&to=
func (h *RouteHandler) Resolve(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "from and to are required"})
		return
	}

	resolved := h.resolver.Resolve(c.Request.Context(), from, to)
	respondJSON(c, http.StatusOK, ResolveResponse{
		Path:       resolved.Path,
		DistanceKm: resolved.DistanceKm,
		Source:     string(resolved.Source),
	})
}

// Quote handles GET /v1/fares/quote?distance_km=&timestamp=|hour=
// timestamp accepts RFC 3339 or unix milliseconds; without either the
// current time is used.
func (h *RouteHandler) Quote(c *gin.Context) {
	distance, ok := queryFloat(c, "distance_km")
	if !ok {
		return
	}
	if distance < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "distance_km must not be negative"})
		return
	}

	var quote FareQuoteResponse
	switch {
	case c.Query("hour") != "":
		hour, err := strconv.Atoi(c.Query("hour"))
		if err != nil || hour < 0 || hour > 23 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hour must be between 0 and 23"})
			return
		}
		quote = toFareQuoteResponse(h.fares.Quote(distance, hour))
	default:
		at := time.Now()
		if raw := c.Query("timestamp"); raw != "" {
			parsed, err := parseTimestamp(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "timestamp must be RFC 3339 or unix milliseconds"})
				return
			}
			at = parsed
		}
		quote = toFareQuoteResponse(h.fares.QuoteAt(distance, at))
	}

	respondJSON(c, http.StatusOK, quote)
}

func toFareQuoteResponse(q domain.FareQuote) FareQuoteResponse {
	return FareQuoteResponse{
		DistanceKm:      q.DistanceKm,
		Hour:            q.Hour,
		Base:            q.Base,
		SurgeMultiplier: q.SurgeMultiplier,
		Label:           q.Label,
		Total:           q.Total,
	}
}

func parseTimestamp(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339, raw)
}
