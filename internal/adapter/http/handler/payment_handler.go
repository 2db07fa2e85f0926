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

// HeaderIdempotencyKey deduplicates payment creation per user.
const HeaderIdempotencyKey = "Idempotency-Key"

// PaymentHandler handles payment-related endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	key := c.GetHeader(HeaderIdempotencyKey)
	if !dto.ValidIdempotencyKey(key) {
		response.Error(c, apperror.Validation("invalid Idempotency-Key header"))
		return
	}

	userID := uuid.MustParse(req.UserID)
	if !middleware.Authorize(c, userID) {
		return
	}

	cur, _ := domain.ParseCurrency(req.Currency)
	payment, err := h.paymentSvc.CreatePayment(c.Request.Context(), ports.CreatePaymentRequest{
		UserID:         userID,
		Amount:         req.Amount,
		Currency:       cur,
		Description:    req.Description,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditSubject(c, payment.UserID, payment.ID.String())

	response.Created(c, dto.NewPaymentResponse(payment))
}

// Get handles GET /api/v1/payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, ok := h.loadOwned(c)
	if !ok {
		return
	}
	response.OK(c, dto.NewPaymentResponse(payment))
}

// UpdateStatus handles PATCH /api/v1/payments/:id/status.
func (h *PaymentHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	current, ok := h.loadOwned(c)
	if !ok {
		return
	}

	payment, err := h.paymentSvc.UpdateStatus(c.Request.Context(), ports.UpdatePaymentStatusRequest{
		PaymentID: current.ID,
		Status:    domain.PaymentStatus(req.Status),
		Message:   req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditSubject(c, payment.UserID, payment.ID.String())

	response.OK(c, dto.NewPaymentResponse(payment))
}

// loadOwned fetches the payment named by :id and checks the caller owns it.
func (h *PaymentHandler) loadOwned(c *gin.Context) (*domain.Payment, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return nil, false
	}

	payment, err := h.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !middleware.Authorize(c, payment.UserID) {
		return nil, false
	}
	return payment, true
}
