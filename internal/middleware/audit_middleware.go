package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/models"
)

// Auditor enregistre une entrée du journal d'audit
type Auditor interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// AuditFailures journalise les tentatives refusées ou échouées d'une action critique.
// Les succès sont audités par les services eux-mêmes.
func AuditFailures(audit Auditor, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}

		entry := models.AuditLog{
			Action:     action,
			Resource:   resource,
			ResourceID: c.Param("id"),
			NewValue:   http.StatusText(status),
			Success:    false,
		}
		if p, ok := CurrentPrincipal(c); ok {
			entry.UserID = p.ID
			entry.UserEmail = p.Email
		}
		audit.Record(c.Request.Context(), entry)
	}
}
