// Package memory keeps orders and addresses in process memory for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

// Registry is the in-memory backend.
type Registry struct {
	orders    *OrderRepository
	addresses *AddressRepository
}

// NewRegistry constructs empty repositories.
func NewRegistry() *Registry {
	return &Registry{
		orders:    &OrderRepository{orders: map[string]domain.Order{}},
		addresses: &AddressRepository{byUser: map[string][]storedAddress{}},
	}
}

func (r *Registry) Orders() repositories.OrderRepository      { return r.orders }
func (r *Registry) Addresses() repositories.AddressRepository { return r.addresses }
func (r *Registry) Ping(context.Context) error                { return nil }
func (r *Registry) Close(context.Context) error               { return nil }

// OrderRepository is the in-memory OrderRepository.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func (r *OrderRepository) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return repositories.NewConflictError("orders.insert", "order %s already exists", order.ID)
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *OrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFoundError("orders.get", "order %s not found", orderID)
	}
	return cloneOrder(order), nil
}

func (r *OrderRepository) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *OrderRepository) Mutate(_ context.Context, orderID string, fn repositories.OrderMutation) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFoundError("orders.mutate", "order %s not found", orderID)
	}
	next := cloneOrder(current)
	if err := fn(&next); err != nil {
		return domain.Order{}, err
	}
	r.orders[orderID] = next
	return cloneOrder(next), nil
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = domain.CloneLineItems(order.Items)
	if order.Payment.PaidAt != nil {
		paidAt := *order.Payment.PaidAt
		order.Payment.PaidAt = &paidAt
	}
	return order
}

type storedAddress struct {
	address domain.Address
	hash    string
}

// AddressRepository is the in-memory AddressRepository.
type AddressRepository struct {
	mu     sync.Mutex
	byUser map[string][]storedAddress
}

func (r *AddressRepository) List(_ context.Context, userID string) ([]domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.byUser[userID]
	out := make([]domain.Address, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.address)
	}
	return out, nil
}

func (r *AddressRepository) Save(_ context.Context, userID string, addr domain.Address) (domain.Address, error) {
	if strings.TrimSpace(addr.ID) == "" {
		return domain.Address{}, repositories.NewConflictError("addresses.save", "address id is required")
	}
	hash := repositories.AddressHash(addr)

	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.byUser[userID]
	for _, s := range stored {
		if s.hash == hash {
			return s.address, nil
		}
	}
	if addr.IsDefault {
		for i := range stored {
			stored[i].address.IsDefault = false
		}
	}
	r.byUser[userID] = append(stored, storedAddress{address: addr, hash: hash})
	return addr, nil
}

func (r *AddressRepository) Delete(_ context.Context, userID, addressID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.byUser[userID]
	for i, s := range stored {
		if s.address.ID == addressID {
			r.byUser[userID] = append(stored[:i:i], stored[i+1:]...)
			return nil
		}
	}
	return repositories.NewNotFoundError("addresses.delete", "address %s not found", addressID)
}

var (
	_ repositories.Registry          = (*Registry)(nil)
	_ repositories.OrderRepository   = (*OrderRepository)(nil)
	_ repositories.AddressRepository = (*AddressRepository)(nil)
)
