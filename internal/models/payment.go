package models

// PaymentSheet est renvoyé au client mobile pour ouvrir la feuille de paiement Stripe
type PaymentSheet struct {
	PaymentIntent  string `json:"paymentIntent"`
	EphemeralKey   string `json:"ephemeralKey"`
	Customer       string `json:"customer"`
	PublishableKey string `json:"publishableKey"`
}

// Types d'évènements Stripe traités
const (
	EventPaymentSucceeded      = "payment_intent.succeeded"
	EventPaymentFailed         = "payment_intent.payment_failed"
	EventPaymentMethodAttached = "payment_method.attached"
)

// PaymentEvent est la forme réduite d'un évènement webhook
type PaymentEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
}
