package handler

import (
	"currency-conversion-service/internal/adapter/http/dto"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// OutboxHandler reports transactional outbox state.
type OutboxHandler struct {
	monitor ports.OutboxMonitor
}

// NewOutboxHandler creates a new OutboxHandler.
func NewOutboxHandler(monitor ports.OutboxMonitor) *OutboxHandler {
	return &OutboxHandler{monitor: monitor}
}

// Pending handles GET /api/v1/outbox/pending.
func (h *OutboxHandler) Pending(c *gin.Context) {
	n, err := h.monitor.PendingCount(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.OutboxPendingResponse{Pending: n})
}
