package events

import (
	"encoding/json"
	"time"
)

const (
	TypeCheckoutCompleted = "CheckoutCompleted"
	TypeCheckoutFailed    = "CheckoutFailed"
)

// Envelope wraps every event published to the checkout topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type CheckoutCompletedPayload struct {
	OrderID     int    `json:"order_id"`
	UserID      int    `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Provider    string `json:"provider"`
	ProviderRef string `json:"provider_ref"`
}

type CheckoutFailedPayload struct {
	UserID   int    `json:"user_id"`
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}
