package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
	"storefront_back_end/internal/utils"
)

var hundred = decimal.NewFromInt(100)

// PaymentService relie les commandes à la passerelle de paiement
type PaymentService struct {
	gateway        Gateway
	orders         *repository.OrderRepository
	users          UserDirectory
	publisher      StatusPublisher
	notifier       PaymentNotifier
	audit          Auditor
	metrics        *metrics.Metrics
	log            *zap.Logger
	currency       string
	publishableKey string
}

// PaymentDeps regroupe les collaborateurs optionnels du PaymentService
type PaymentDeps struct {
	Users     UserDirectory
	Publisher StatusPublisher
	Notifier  PaymentNotifier
	Audit     Auditor
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

func NewPaymentService(gateway Gateway, orders *repository.OrderRepository, currency, publishableKey string, deps PaymentDeps) *PaymentService {
	s := &PaymentService{
		gateway:        gateway,
		orders:         orders,
		users:          deps.Users,
		publisher:      deps.Publisher,
		notifier:       deps.Notifier,
		audit:          deps.Audit,
		metrics:        deps.Metrics,
		log:            deps.Log,
		currency:       currency,
		publishableKey: publishableKey,
	}
	if s.audit == nil {
		s.audit = nopAuditor{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	return s
}

// PublishableKey est la clé publique Stripe exposée au client
func (s *PaymentService) PublishableKey() string {
	return s.publishableKey
}

// AmountMinor convertit un total en unités mineures (centimes), arrondi inférieur
func AmountMinor(total decimal.Decimal) int64 {
	return total.Mul(hundred).Floor().IntPart()
}

// CreatePaymentIntent ouvre un paiement Stripe pour la commande de l'acheteur
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, buyer models.Principal, orderID int64) (*models.PaymentSheet, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch order")
	}
	if order.UserID != buyer.ID {
		return nil, apperr.Forbidden("Not authorized to pay for this order")
	}
	if order.Status == models.OrderStatusPaid {
		return nil, apperr.Validation("Order is already paid")
	}

	itemsByOrder, err := s.orders.ItemsByOrders(ctx, order.ID)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch order")
	}
	total := models.OrderTotal(itemsByOrder[order.ID])
	amount := AmountMinor(total)
	if amount <= 0 {
		return nil, apperr.Validation("Order total is 0")
	}

	session, err := s.gateway.CreatePaymentSession(ctx, PaymentSessionRequest{
		OrderID:       order.ID,
		UserID:        buyer.ID,
		CustomerEmail: buyer.Email,
		AmountMinor:   amount,
		Currency:      s.currency,
	})
	if err != nil {
		return nil, apperr.Internal(err, "Failed to create payment intent")
	}

	if err := s.orders.SetPaymentIntent(ctx, order.ID, session.PaymentIntentID, models.OrderStatusPaymentPending); err != nil {
		return nil, apperr.Internal(err, "Failed to create payment intent")
	}

	s.publish(ctx, order.ID, order.UserID, models.OrderStatusPaymentPending)
	s.audit.Record(ctx, utils.NewAuditEntry(buyer, utils.ACTION_ORDER_PAYMENT_START, utils.RESOURCE_ORDER,
		strconv.FormatInt(order.ID, 10), map[string]any{
			"paymentIntent": session.PaymentIntentID,
			"amount":        amount,
			"currency":      s.currency,
		}))

	return &models.PaymentSheet{
		PaymentIntent:  session.ClientSecret,
		EphemeralKey:   session.EphemeralKey,
		Customer:       session.CustomerID,
		PublishableKey: s.publishableKey,
	}, nil
}

// HandleWebhook vérifie la signature via la passerelle puis traite l'évènement
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.log.Warn("❌ Signature webhook invalide", zap.Error(err))
		return apperr.Validation("Webhook Error: %s", err.Error())
	}
	return s.HandleEvent(ctx, event)
}

// HandleEvent applique un évènement Stripe aux commandes concernées.
// Les types inconnus sont journalisés et ignorés.
func (s *PaymentService) HandleEvent(ctx context.Context, event models.PaymentEvent) error {
	s.metrics.PaymentEvent(event.Type)

	switch event.Type {
	case models.EventPaymentSucceeded:
		s.log.Info("✅ Paiement réussi", zap.String("payment_intent", event.PaymentIntentID))
		return s.applyStatus(ctx, event, models.OrderStatusPaid)
	case models.EventPaymentFailed:
		s.log.Warn("❌ Paiement échoué", zap.String("payment_intent", event.PaymentIntentID))
		return s.applyStatus(ctx, event, models.OrderStatusPaymentFailed)
	case models.EventPaymentMethodAttached:
		return nil
	default:
		s.log.Info("ℹ️ Évènement Stripe ignoré", zap.String("type", event.Type), zap.String("event_id", event.ID))
		return nil
	}
}

func (s *PaymentService) applyStatus(ctx context.Context, event models.PaymentEvent, status models.OrderStatus) error {
	if event.PaymentIntentID == "" {
		s.log.Warn("⚠️ Évènement sans PaymentIntent", zap.String("event_id", event.ID))
		return nil
	}

	orders, err := s.orders.UpdateStatusByIntent(ctx, event.PaymentIntentID, status)
	if err != nil {
		return apperr.Internal(err, "Failed to update order status")
	}
	if len(orders) == 0 {
		s.log.Warn("⚠️ Aucune commande pour ce PaymentIntent", zap.String("payment_intent", event.PaymentIntentID))
		return nil
	}

	for _, order := range orders {
		s.publish(ctx, order.ID, order.UserID, status)
		s.audit.Record(ctx, models.AuditLog{
			UserID:     order.UserID,
			Action:     utils.ACTION_ORDER_STATUS,
			Resource:   utils.RESOURCE_ORDER,
			ResourceID: strconv.FormatInt(order.ID, 10),
			NewValue:   string(status),
			Success:    true,
		})
		if status == models.OrderStatusPaid {
			s.notifyPaid(ctx, order)
		}
	}
	return nil
}

func (s *PaymentService) publish(ctx context.Context, orderID int64, userID string, status models.OrderStatus) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishOrderStatus(ctx, models.OrderStatusEvent{
		OrderID: orderID,
		UserID:  userID,
		Status:  status,
		At:      time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("⚠️ Publication du statut impossible", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

// notifyPaid envoie le mail de confirmation ; un échec n'annule pas le paiement
func (s *PaymentService) notifyPaid(ctx context.Context, order models.Order) {
	if s.notifier == nil || s.users == nil {
		return
	}
	user, err := s.users.GetByID(ctx, order.UserID)
	if err != nil {
		s.log.Warn("⚠️ Acheteur introuvable pour le mail", zap.String("user_id", order.UserID), zap.Error(err))
		return
	}
	itemsByOrder, err := s.orders.ItemsByOrders(ctx, order.ID)
	if err != nil {
		s.log.Warn("⚠️ Lignes introuvables pour le mail", zap.Int64("order_id", order.ID), zap.Error(err))
		return
	}
	if err := s.notifier.PaymentConfirmed(ctx, user.Email, models.NewOrderDetail(order, itemsByOrder[order.ID])); err != nil {
		s.log.Warn("⚠️ Envoi du mail de confirmation échoué", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}
