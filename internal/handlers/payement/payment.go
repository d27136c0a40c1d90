package payement

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/models"
)

// taille maximale d'un évènement Stripe
const maxWebhookBody = 65536

// Payments est le service de paiement utilisé par PaymentHandler
type Payments interface {
	CreatePaymentIntent(ctx context.Context, buyer models.Principal, orderID int64) (*models.PaymentSheet, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	PublishableKey() string
}

type PaymentHandler struct {
	payments Payments
	log      *zap.Logger
}

func NewPaymentHandler(payments Payments, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

// CreatePaymentIntent : POST /stripe/payment-intent {orderId}
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	buyer, ok := handlers.MustPrincipal(c)
	if !ok {
		return
	}

	var in struct {
		OrderID int64 `json:"orderId" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		handlers.BadJSON(c, err)
		return
	}

	sheet, err := h.payments.CreatePaymentIntent(c.Request.Context(), buyer, in.OrderID)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

// StripeWebhook : POST /stripe/webhook, corps brut signé par Stripe
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// GetKeys : GET /stripe/keys
func (h *PaymentHandler) GetKeys(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publishableKey": h.payments.PublishableKey()})
}
