package handler

import (
	"currency-conversion-service/internal/adapter/http/dto"
	"currency-conversion-service/internal/adapter/http/middleware"
	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/pkg/apperror"
	"currency-conversion-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConversionHandler handles currency conversion requests.
type ConversionHandler struct {
	conversionSvc ports.ConversionService
}

// NewConversionHandler creates a new ConversionHandler.
func NewConversionHandler(conversionSvc ports.ConversionService) *ConversionHandler {
	return &ConversionHandler{conversionSvc: conversionSvc}
}

// Convert handles POST /api/v1/conversions. Declines carry a reason
// (insufficient_funds, venue_unavailable, execution_failed) in the error body.
func (h *ConversionHandler) Convert(c *gin.Context) {
	var req dto.ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	userID := uuid.MustParse(req.UserID)
	if !middleware.Authorize(c, userID) {
		return
	}

	from, _ := domain.ParseCurrency(req.FromCurrency)
	to, _ := domain.ParseCurrency(req.ToCurrency)

	result, err := h.conversionSvc.Convert(c.Request.Context(), ports.ConversionRequest{
		UserID: userID,
		From:   from,
		To:     to,
		Amount: req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditSubject(c, userID, userID.String())

	response.OK(c, dto.NewConversionResponse(result))
}
