package firestore

import (
	"context"

	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
)

// Registry is the Firestore backend.
type Registry struct {
	provider  *pfirestore.Provider
	orders    *OrderRepository
	addresses *AddressRepository
}

// NewRegistry wires the Firestore repositories onto provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	addresses, err := NewAddressRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{provider: provider, orders: orders, addresses: addresses}, nil
}

func (r *Registry) Orders() repositories.OrderRepository      { return r.orders }
func (r *Registry) Addresses() repositories.AddressRepository { return r.addresses }

// Ping checks Firestore reachability.
func (r *Registry) Ping(ctx context.Context) error { return r.provider.Ping(ctx) }

// Close releases the Firestore client.
func (r *Registry) Close(context.Context) error { return r.provider.Close() }

var _ repositories.Registry = (*Registry)(nil)
