package cart

import "github.com/shopspring/decimal"

// Item is one cart line: a product, how many of it, and the unit price in
// major currency units. The checkout flow only ever reads carts; editing
// them belongs to the storefront.
type Item struct {
	ProductID int             `json:"productID"`
	Name      string          `json:"productName"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}
