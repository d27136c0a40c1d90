// Package services porte la logique métier : catalogue, commandes, paiements, identité.
package services

import (
	"context"

	"storefront_back_end/internal/models"
)

// Auditor enregistre une action dans le journal d'audit
type Auditor interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// StatusPublisher diffuse les changements de statut de commande
type StatusPublisher interface {
	PublishOrderStatus(ctx context.Context, event models.OrderStatusEvent) error
}

// PaymentNotifier prévient l'acheteur d'un paiement réussi
type PaymentNotifier interface {
	PaymentConfirmed(ctx context.Context, to string, order models.OrderDetail) error
}

// UserDirectory retrouve un utilisateur par id
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, models.AuditLog) {}
