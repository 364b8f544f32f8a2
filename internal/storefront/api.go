package storefront

import (
	"context"

	"github.com/hanko-field/storefront/internal/domain"
)

// AddressAPI is the remote address book. Every call returns the full current address set.
type AddressAPI interface {
	ListAddresses(ctx context.Context, token string) ([]domain.Address, error)
	AddAddress(ctx context.Context, token string, address domain.Address) ([]domain.Address, error)
	DeleteAddress(ctx context.Context, token, addressID string) ([]domain.Address, error)
}

// OrderAPI is the remote order service.
type OrderAPI interface {
	CreateOrder(ctx context.Context, token string, draft OrderDraft, idempotencyKey string) (domain.Order, error)
	ListMyOrders(ctx context.Context, token string) ([]domain.OrderSummary, error)
	GetOrder(ctx context.Context, token, orderID string) (domain.Order, error)
}

// OrderDraft is the order body submitted from a frozen checkout.
type OrderDraft struct {
	Items           []domain.LineItem
	ShippingAddress domain.Address
	ShippingMethod  domain.ShippingMethod
	PaymentMethod   domain.PaymentMethod
	PaymentDetails  domain.PaymentDetails
	Totals          domain.Totals
}
