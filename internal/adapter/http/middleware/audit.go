package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys handlers set so the audit entry names the affected user and
// resource even when auth is disabled.
const (
	CtxAuditUserID     = "audit_user_id"
	CtxAuditResourceID = "audit_resource_id"
)

// SetAuditSubject records who and what a successful write touched.
func SetAuditSubject(c *gin.Context, userID uuid.UUID, resourceID string) {
	c.Set(CtxAuditUserID, userID)
	c.Set(CtxAuditResourceID, resourceID)
}

// AuditLog creates an audit middleware that logs successful write operations.
// It maps HTTP methods and route patterns to audit actions.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var userID *uuid.UUID
		for _, key := range []string{CtxUserID, CtxAuditUserID} {
			if v, exists := c.Get(key); exists {
				if id, ok := v.(uuid.UUID); ok {
					userID = &id
					break
				}
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(response.CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxAuditResourceID),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/accounts" && method == http.MethodPost:
		return domain.AuditActionOpenAccount, "account"
	case route == "/api/v1/conversions" && method == http.MethodPost:
		return domain.AuditActionConversion, "account"
	case route == "/api/v1/payments" && method == http.MethodPost:
		return domain.AuditActionPayment, "payment"
	case route == "/api/v1/payments/:id/status" && method == http.MethodPatch:
		return domain.AuditActionPaymentStatus, "payment"
	case route == "/api/v1/venue/quotes" && method == http.MethodPost:
		return domain.AuditActionQuote, "quote"
	case route == "/api/v1/venue/trades" && method == http.MethodPost:
		return domain.AuditActionTrade, "quote"
	}
	return "", ""
}
