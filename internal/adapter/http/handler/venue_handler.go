package handler

import (
	"context"
	"time"

	"currency-conversion-service/internal/adapter/http/dto"
	"currency-conversion-service/internal/adapter/http/middleware"
	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/pkg/apperror"
	"currency-conversion-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// VenueHandler exposes the simulated venue's quote and execute operations.
type VenueHandler struct {
	venue   ports.Venue
	timeout time.Duration
}

// NewVenueHandler creates a new VenueHandler. timeout bounds each venue call.
func NewVenueHandler(venue ports.Venue, timeout time.Duration) *VenueHandler {
	return &VenueHandler{venue: venue, timeout: timeout}
}

// Quote handles POST /api/v1/venue/quotes.
func (h *VenueHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	from, ok := domain.ParseCurrency(req.From)
	if !ok {
		response.Error(c, apperror.ErrUnsupportedCurrency(req.From))
		return
	}
	to, ok := domain.ParseCurrency(req.To)
	if !ok {
		response.Error(c, apperror.ErrUnsupportedCurrency(req.To))
		return
	}
	if from == to {
		response.Error(c, apperror.Validation("from and to must differ"))
		return
	}
	if !req.Amount.IsPositive() || !domain.HasMoneyScale(req.Amount) {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	quote, err := h.venue.GetQuote(ctx, from, to, req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrQuoteUnavailable(err))
		return
	}
	c.Set(middleware.CtxAuditResourceID, quote.QuoteID)

	response.OK(c, dto.NewQuoteResponse(quote))
}

// Trade handles POST /api/v1/venue/trades. A declined trade is still a 200
// whose body says success=false.
func (h *VenueHandler) Trade(c *gin.Context) {
	var req dto.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.venue.ExecuteTrade(ctx, req.QuoteID)
	if err != nil {
		response.Error(c, apperror.ErrTradeExecutionFailed(err))
		return
	}
	c.Set(middleware.CtxAuditResourceID, req.QuoteID)

	response.OK(c, dto.NewTradeResponse(result))
}
