package order

import (
	"errors"
	"time"
)

var ErrInvalidUser = errors.New("invalid user")

// Service provides business logic for the order lifecycle.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// Create persists a new order for the given user. The user identity must
// be present; a missing identity is a persistence failure, not a provider
// problem.
func (s *Service) Create(userID int, providerRef *string, amountMinor int64, currency, status string) (Order, error) {
	if userID <= 0 {
		return Order{}, ErrInvalidUser
	}
	now := time.Now().UTC().Format(time.RFC3339)
	return s.repo.Create(Order{
		UserID:      userID,
		ProviderRef: providerRef,
		AmountMinor: amountMinor,
		Currency:    currency,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// Complete flips a pending order to completed and records the provider's
// transaction id.
func (s *Service) Complete(orderID int, providerRef string) (Order, error) {
	return s.repo.Complete(orderID, providerRef, time.Now().UTC().Format(time.RFC3339))
}

func (s *Service) GetByID(id int) (Order, error) {
	return s.repo.GetByID(id)
}

func (s *Service) GetByProviderRef(ref string) (Order, error) {
	return s.repo.GetByProviderRef(ref)
}

func (s *Service) ListByUser(userID int) ([]Order, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	return s.repo.ListByUser(userID)
}
