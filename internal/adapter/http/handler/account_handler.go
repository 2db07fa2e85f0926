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

// AccountHandler handles Balance Store endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// Open handles POST /api/v1/accounts.
func (h *AccountHandler) Open(c *gin.Context) {
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	userID := uuid.Nil
	if req.UserID != "" {
		userID = uuid.MustParse(req.UserID) // binding already checked the format
	} else if subject, ok := c.Get(middleware.CtxUserID); ok {
		userID = subject.(uuid.UUID)
	}
	if userID != uuid.Nil && !middleware.Authorize(c, userID) {
		return
	}

	balances := make(domain.Balances, len(req.Balances))
	for code, amt := range req.Balances {
		cur, _ := domain.ParseCurrency(code)
		balances[cur] = amt
	}

	acc, err := h.accountSvc.OpenAccount(c.Request.Context(), ports.OpenAccountRequest{
		UserID:   userID,
		Balances: balances,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditSubject(c, acc.UserID, acc.UserID.String())

	response.Created(c, dto.NewAccountResponse(acc))
}

// Get handles GET /api/v1/accounts/:user_id.
func (h *AccountHandler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.Error(c, apperror.Validation("user_id must be a UUID"))
		return
	}
	if !middleware.Authorize(c, userID) {
		return
	}

	acc, err := h.accountSvc.GetAccount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAccountResponse(acc))
}
