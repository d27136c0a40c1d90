package utils

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
)

func TestAuditRecorderFallsBackToLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	recorder := NewAuditRecorder(nil, zap.New(core))

	actor := models.Principal{ID: "seller-1", Email: "s@example.com"}
	entry := NewAuditEntry(actor, ACTION_PRODUCT_CREATE, RESOURCE_PRODUCT, "12", map[string]string{"name": "Mug"})
	assert.Equal(t, `{"name":"Mug"}`, entry.NewValue)

	recorder.Record(context.Background(), entry)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "product.create", fields["action"])
	assert.Equal(t, "12", fields["resource_id"])
	assert.Equal(t, "seller-1", fields["user_id"])
}

func TestRenderPaymentConfirmation(t *testing.T) {
	order := models.NewOrderDetail(models.Order{ID: 42}, []models.OrderItem{
		{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		{ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("5.00")},
	})

	html, err := RenderPaymentConfirmation(order)
	require.NoError(t, err)
	assert.Contains(t, html, "order #42")
	assert.Contains(t, html, "20.00")
	assert.Contains(t, html, "25.00")
}

func TestMailerDisabledWithoutHost(t *testing.T) {
	m := NewMailer(config.SMTPSettings{}, nil)
	assert.False(t, m.Enabled())
	assert.NoError(t, m.PaymentConfirmed(context.Background(), "buyer@example.com", models.OrderDetail{}))
}
