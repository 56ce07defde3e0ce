package payment

import (
	"context"
	"fmt"
)

// MinimumChargeMinor is the smallest amount either provider accepts, in
// minor currency units. Anything below it is rejected before a provider
// is contacted.
const MinimumChargeMinor = 50

// Reason classifies why a checkout attempt failed.
type Reason string

const (
	ReasonAmountTooLow       Reason = "amount_too_low"
	ReasonProviderRejected   Reason = "provider_rejected"
	ReasonMissingCorrelation Reason = "missing_correlation"
	ReasonPersistenceFailure Reason = "persistence_failure"
	ReasonNotFound           Reason = "not_found"
)

// Error is the classified failure returned by every provider-call wrapper
// and by the orchestrator. Message is safe to log; clients only ever see a
// generic text.
type Error struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(reason Reason, message string, err error) *Error {
	return &Error{Reason: reason, Message: message, Err: err}
}

// Intent is the card provider's payment intent as far as this system
// cares: its id, its status, and where to send the user when additional
// authentication is required.
type Intent struct {
	ID            string
	Status        string
	NextActionURL string
}

// CardProvider is the direct-capture provider contract: one call creates
// and confirms the charge, a second call reads the intent back after the
// user returns from additional authentication.
type CardProvider interface {
	CreateAndConfirmIntent(ctx context.Context, amountMinor int64, currency, paymentMethod, returnURL string) (Intent, error)
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
}

// Link is one entry of the wallet provider's HATEOAS link list.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// WalletOrder is the wallet provider's order resource.
type WalletOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ApproveLink returns the link the user must be redirected to, found by
// its named relation. Link ordering is not part of the provider contract.
func (w WalletOrder) ApproveLink() (string, bool) {
	for _, l := range w.Links {
		if l.Rel == "approve" {
			return l.Href, true
		}
	}
	return "", false
}

// Capture is the result of capturing an approved wallet order.
type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateWalletOrderRequest carries everything the two-phase provider
// needs to create an order with intent "capture now".
type CreateWalletOrderRequest struct {
	ReferenceID string
	Currency    string
	Value       string
	CancelURL   string
	ReturnURL   string
}

// WalletProvider is the two-phase provider contract: create an order, send
// the user to the approval page, capture once they return.
type WalletProvider interface {
	CreateOrder(ctx context.Context, req CreateWalletOrderRequest) (WalletOrder, error)
	CaptureOrder(ctx context.Context, token string) (Capture, error)
}
