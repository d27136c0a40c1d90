package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"storefront_back_end/internal/models"
)

// Actions d'audit
const (
	ACTION_PRODUCT_CREATE = "product.create"
	ACTION_PRODUCT_UPDATE = "product.update"
	ACTION_PRODUCT_DELETE = "product.delete"

	ACTION_ORDER_CREATE        = "order.create"
	ACTION_ORDER_PAYMENT_START = "order.payment_start"
	ACTION_ORDER_STATUS        = "order.status"

	ACTION_USER_REGISTER    = "user.register"
	ACTION_USER_ROLE_ASSIGN = "user.role_assign"
)

// Ressources d'audit
const (
	RESOURCE_PRODUCT = "product"
	RESOURCE_ORDER   = "order"
	RESOURCE_USER    = "user"
)

const auditInsertQuery = `
	INSERT INTO audit_logs (
		id, user_id, user_email, action, resource, resource_id,
		old_value, new_value, success, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// AuditRecorder écrit le journal d'audit dans ScyllaDB,
// ou dans les logs applicatifs si aucune session n'est configurée.
type AuditRecorder struct {
	session *gocql.Session
	log     *zap.Logger
	timeout time.Duration
}

func NewAuditRecorder(session *gocql.Session, log *zap.Logger) *AuditRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditRecorder{session: session, log: log, timeout: 5 * time.Second}
}

// NewAuditEntry prépare une entrée pour l'acteur donné ; newValue est sérialisé en JSON
func NewAuditEntry(actor models.Principal, action, resource, resourceID string, newValue any) models.AuditLog {
	entry := models.AuditLog{
		UserID:     actor.ID,
		UserEmail:  actor.Email,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Success:    true,
	}
	if newValue != nil {
		if b, err := json.Marshal(newValue); err == nil {
			entry.NewValue = string(b)
		}
	}
	return entry
}

// Record enregistre de façon asynchrone ; une erreur d'écriture est seulement loguée
func (a *AuditRecorder) Record(ctx context.Context, entry models.AuditLog) {
	id := gocql.TimeUUID()
	entry.ID = id.String()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if a.session == nil {
		a.log.Info("audit",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.String("resource_id", entry.ResourceID),
			zap.String("user_id", entry.UserID),
			zap.Bool("success", entry.Success),
		)
		return
	}

	// la requête HTTP peut se terminer avant l'écriture
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	go func() {
		defer cancel()
		err := a.session.Query(auditInsertQuery,
			id, entry.UserID, entry.UserEmail, entry.Action, entry.Resource, entry.ResourceID,
			entry.OldValue, entry.NewValue, entry.Success, entry.Timestamp,
		).WithContext(ctx).Exec()
		if err != nil {
			a.log.Error("❌ Erreur enregistrement log audit", zap.Error(err), zap.String("action", entry.Action))
		}
	}()
}
