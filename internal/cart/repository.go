package cart

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("user not found")

// Repository gives the checkout flow read access to a user's cart plus the
// single mutation it is allowed: emptying the cart after a completed
// payment.
type Repository interface {
	GetCart(userID int) ([]Item, error)
	ClearCart(userID int) error
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu    sync.RWMutex
	carts map[int][]Item
}

func NewInMemoryRepository(seed map[int][]Item) *InMemoryRepository {
	r := &InMemoryRepository{carts: make(map[int][]Item, len(seed))}
	for uid, items := range seed {
		r.carts[uid] = append([]Item(nil), items...)
	}
	return r
}

func (r *InMemoryRepository) GetCart(userID int) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items, ok := r.carts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Item(nil), items...), nil
}

func (r *InMemoryRepository) ClearCart(userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[userID]; !ok {
		return ErrNotFound
	}
	r.carts[userID] = []Item{}
	return nil
}
