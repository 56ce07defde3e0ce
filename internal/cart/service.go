package cart

import "github.com/shopspring/decimal"

// Service exposes the cart reads the checkout flow needs along with the
// amount calculation both payment providers share.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetCart(userID int) ([]Item, error) {
	if userID <= 0 {
		return nil, ErrNotFound
	}
	return s.repo.GetCart(userID)
}

func (s *Service) ClearCart(userID int) error {
	if userID <= 0 {
		return ErrNotFound
	}
	return s.repo.ClearCart(userID)
}

// Totals computes the cart total as the sum of price x quantity. The major
// amount is rounded to two decimal places for providers that take decimal
// strings; the minor amount is an integer count of the smallest currency
// unit for providers that take integers.
func Totals(items []Item) (major decimal.Decimal, minor int64) {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	major = total.Round(2)
	minor = major.Mul(decimal.NewFromInt(100)).IntPart()
	return major, minor
}
