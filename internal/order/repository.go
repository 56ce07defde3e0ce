package order

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("order not found")

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts a new order. When the order carries a provider
	// reference the insert is an upsert on that reference: replaying the
	// same provider callback returns the already stored order instead of
	// creating a second one.
	Create(ord Order) (Order, error)

	// Complete transitions a pending order to completed and attaches the
	// provider reference.
	Complete(orderID int, providerRef string, updatedAt string) (Order, error)

	GetByID(id int) (Order, error)

	// GetByProviderRef finds the order recorded for an external
	// transaction id. Replayed callbacks use it once the checkout
	// session is gone.
	GetByProviderRef(ref string) (Order, error)

	// ListByUser returns a user's orders, newest first.
	ListByUser(userID int) ([]Order, error)
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu     sync.Mutex
	nextID int
	orders map[int]Order
	byRef  map[string]int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		nextID: 1,
		orders: make(map[int]Order),
		byRef:  make(map[string]int),
	}
}

func (r *InMemoryRepository) Create(ord Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ord.ProviderRef != nil {
		if id, ok := r.byRef[*ord.ProviderRef]; ok {
			return r.orders[id], nil
		}
	}
	ord.OrderID = r.nextID
	r.nextID++
	r.orders[ord.OrderID] = ord
	if ord.ProviderRef != nil {
		r.byRef[*ord.ProviderRef] = ord.OrderID
	}
	return ord, nil
}

func (r *InMemoryRepository) Complete(orderID int, providerRef string, updatedAt string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	ord.Status = StatusCompleted
	ord.ProviderRef = &providerRef
	ord.UpdatedAt = updatedAt
	r.orders[orderID] = ord
	r.byRef[providerRef] = orderID
	return ord, nil
}

func (r *InMemoryRepository) GetByID(id int) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return ord, nil
}

func (r *InMemoryRepository) GetByProviderRef(ref string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRef[ref]
	if !ok {
		return Order{}, ErrNotFound
	}
	return r.orders[id], nil
}

func (r *InMemoryRepository) ListByUser(userID int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0)
	for id := r.nextID - 1; id >= 1; id-- {
		if ord, ok := r.orders[id]; ok && ord.UserID == userID {
			out = append(out, ord)
		}
	}
	return out, nil
}

// Len reports how many orders exist; tests use it to assert exactly-once
// persistence.
func (r *InMemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}
