package order

// Order statuses. Completed and failed are terminal; pending orders are
// completed in place when the provider confirms the charge.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Order is the persisted record of one checkout attempt. ProviderRef holds
// the external transaction id once the provider has confirmed; it doubles
// as the idempotency key, so duplicate callbacks collapse to one row.
// Amounts are stored in minor currency units.
type Order struct {
	OrderID     int     `json:"orderID"`
	UserID      int     `json:"userID"`
	ProviderRef *string `json:"providerRef,omitempty"`
	AmountMinor int64   `json:"amountMinor"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}
