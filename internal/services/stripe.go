package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
	"go.uber.org/zap"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
)

// PaymentSessionRequest décrit le paiement à ouvrir chez la passerelle
type PaymentSessionRequest struct {
	OrderID       int64
	UserID        string
	CustomerEmail string
	AmountMinor   int64
	Currency      string
}

// PaymentSession contient les secrets renvoyés par la passerelle
type PaymentSession struct {
	PaymentIntentID string
	ClientSecret    string
	EphemeralKey    string
	CustomerID      string
}

// Gateway est la passerelle de paiement
type Gateway interface {
	CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error)
	ParseWebhook(payload []byte, signature string) (models.PaymentEvent, error)
}

// StripeGateway implémente Gateway avec stripe-go
type StripeGateway struct {
	client        *stripe.Client
	webhookSecret string
	keyVersion    string
	allowUnsigned bool
	log           *zap.Logger
}

func NewStripeGateway(cfg config.StripeSettings, production bool, log *zap.Logger) *StripeGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeGateway{
		client:        stripe.NewClient(cfg.SecretKey),
		webhookSecret: cfg.WebhookSecret,
		keyVersion:    cfg.EphemeralKeyVersion,
		allowUnsigned: !production && cfg.WebhookSecret == "",
		log:           log,
	}
}

// CreatePaymentSession crée client, clé éphémère et PaymentIntent
func (g *StripeGateway) CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error) {
	orderID := strconv.FormatInt(req.OrderID, 10)

	customer, err := g.client.V1Customers.Create(ctx, &stripe.CustomerCreateParams{
		Email:    stripe.String(req.CustomerEmail),
		Metadata: map[string]string{"userId": req.UserID},
	})
	if err != nil {
		return nil, fmt.Errorf("stripe customer: %w", err)
	}

	key, err := g.client.V1EphemeralKeys.Create(ctx, &stripe.EphemeralKeyCreateParams{
		Customer:      stripe.String(customer.ID),
		StripeVersion: stripe.String(g.keyVersion),
	})
	if err != nil {
		return nil, fmt.Errorf("stripe ephemeral key: %w", err)
	}

	intent, err := g.client.V1PaymentIntents.Create(ctx, &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		Customer: stripe.String(customer.ID),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"orderId": orderID,
			"userId":  req.UserID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}

	g.log.Info("💳 PaymentIntent créé",
		zap.String("payment_intent", intent.ID),
		zap.String("order_id", orderID),
		zap.Int64("amount", req.AmountMinor),
	)

	return &PaymentSession{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		EphemeralKey:    key.Secret,
		CustomerID:      customer.ID,
	}, nil
}

// ParseWebhook vérifie la signature et extrait l'id du PaymentIntent concerné
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (models.PaymentEvent, error) {
	var (
		event stripe.Event
		err   error
	)
	if g.allowUnsigned {
		g.log.Warn("⚠️ Pas de STRIPE_WEBHOOK_SECRET, mode test, signature non vérifiée")
		err = json.Unmarshal(payload, &event)
	} else {
		event, err = webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	}
	if err != nil {
		return models.PaymentEvent{}, err
	}
	return paymentEventFrom(event), nil
}

func paymentEventFrom(event stripe.Event) models.PaymentEvent {
	out := models.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out
	}
	// seuls les évènements payment_intent.* portent un PaymentIntent
	var obj struct {
		ID     string `json:"id"`
		Object string `json:"object"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err == nil && obj.Object == "payment_intent" {
		out.PaymentIntentID = obj.ID
	}
	return out
}
