package provider

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Event type names the payment provider delivers to the webhook endpoint.
const (
	EventPaymentCompleted  = "payment.completed"
	EventPaymentFailed     = "payment.failed"
	EventCheckoutCompleted = "checkout.session.completed"
)

// Event is the provider's webhook envelope. Data stays raw until the type is
// known.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PaymentCompletedData confirms a scheduled or pending ledger entry.
type PaymentCompletedData struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

// PaymentFailedData reports a declined charge for an open ledger entry.
type PaymentFailedData struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Reason        string    `json:"reason"`
}

// CheckoutCompletedData confirms a wallet top-up checkout session.
type CheckoutCompletedData struct {
	UserID        uuid.UUID `json:"user_id"`
	Amount        string    `json:"amount"`
	SessionID     string    `json:"session_id"`
	PaymentIntent string    `json:"payment_intent"`
	PaymentStatus string    `json:"payment_status"`
}
