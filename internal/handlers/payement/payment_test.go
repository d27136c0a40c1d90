package payement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenStub struct{}

func (tokenStub) Verify(_ context.Context, token string) (models.Principal, error) {
	return models.Principal{ID: token}, nil
}

type grantsStub struct{}

func (grantsStub) Resolve(context.Context, string) (models.Grants, error) {
	return models.DefaultGrants(), nil
}

type fakePayments struct {
	payloads []string
}

func (f *fakePayments) CreatePaymentIntent(_ context.Context, buyer models.Principal, orderID int64) (*models.PaymentSheet, error) {
	switch {
	case orderID == 404:
		return nil, apperr.NotFound("Order not found")
	case buyer.ID != "alice":
		return nil, apperr.Forbidden("Not authorized to pay for this order")
	}
	return &models.PaymentSheet{PaymentIntent: "pi_secret", EphemeralKey: "ek", Customer: "cus_1", PublishableKey: "pk_test"}, nil
}

func (f *fakePayments) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	if signature != "t=1,v1=ok" {
		return apperr.Validation("Webhook Error: signature mismatch")
	}
	f.payloads = append(f.payloads, string(payload))
	return nil
}

func (f *fakePayments) PublishableKey() string { return "pk_test" }

func newRouter(p Payments) *gin.Engine {
	r := gin.New()
	h := NewPaymentHandler(p, zap.NewNop())
	r.POST("/stripe/webhook", h.StripeWebhook)
	r.GET("/stripe/keys", h.GetKeys)
	r.POST("/stripe/payment-intent", middleware.AuthRequired(tokenStub{}, grantsStub{}, zap.NewNop()), h.CreatePaymentIntent)
	return r
}

func post(r http.Handler, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetKeys(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&fakePayments{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stripe/keys", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publishableKey":"pk_test"}`, w.Body.String())
}

func TestCreatePaymentIntent(t *testing.T) {
	r := newRouter(&fakePayments{})

	w := post(r, "/stripe/payment-intent", "alice", `{"orderId":7}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"paymentIntent":"pi_secret","ephemeralKey":"ek","customer":"cus_1","publishableKey":"pk_test"}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, post(r, "/stripe/payment-intent", "mallory", `{"orderId":7}`, nil).Code)
	assert.Equal(t, http.StatusNotFound, post(r, "/stripe/payment-intent", "alice", `{"orderId":404}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/stripe/payment-intent", "alice", `{"orderId":0}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/stripe/payment-intent", "alice", `{}`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, "/stripe/payment-intent", "", `{"orderId":7}`, nil).Code)
}

func TestStripeWebhook(t *testing.T) {
	payments := &fakePayments{}
	r := newRouter(payments)

	w := post(r, "/stripe/webhook", "", `{"id":"evt_1"}`, map[string]string{"Stripe-Signature": "t=1,v1=bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Webhook Error")

	w = post(r, "/stripe/webhook", "", `{"id":"evt_1"}`, map[string]string{"Stripe-Signature": "t=1,v1=ok"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Equal(t, []string{`{"id":"evt_1"}`}, payments.payloads)

	big := strings.Repeat("x", maxWebhookBody+1)
	w = post(r, "/stripe/webhook", "", big, map[string]string{"Stripe-Signature": "t=1,v1=ok"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
