package services

import (
	"context"
	"time"

	"github.com/hanko-field/storefront/internal/domain"
)

// OrderService owns order creation and the server-side order lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	ListMine(ctx context.Context, userID string) ([]domain.OrderSummary, error)
	GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error)
	UpdatePayment(ctx context.Context, cmd UpdatePaymentCommand) (domain.Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (domain.Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error)
}

// AddressService manages a user's delivery addresses. Every mutation returns the full list.
type AddressService interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Add(ctx context.Context, cmd AddAddressCommand) ([]domain.Address, error)
	Delete(ctx context.Context, userID, addressID string) ([]domain.Address, error)
}

// CreateOrderCommand carries the checkout submitted by a client. Claimed totals are checked
// against the server-side computation.
type CreateOrderCommand struct {
	UserID          string
	Items           []domain.LineItem
	ShippingAddress domain.Address
	ShippingMethod  domain.ShippingMethod
	PaymentMethod   domain.PaymentMethod
	PaymentDetails  domain.PaymentDetails
	ClaimedTotals   domain.Totals
}

// UpdatePaymentCommand records the outcome of a payment attempt.
type UpdatePaymentCommand struct {
	UserID        string
	OrderID       string
	Status        domain.PaymentStatus
	TransactionID string
}

// OrderStatusTransitionCommand moves an order along its lifecycle.
type OrderStatusTransitionCommand struct {
	OrderID        string
	TargetStatus   domain.OrderStatus
	ExpectedStatus *domain.OrderStatus
	ActorID        string
	Reason         string
}

// CancelOrderCommand cancels an order owned by UserID.
type CancelOrderCommand struct {
	UserID  string
	OrderID string
	Reason  string
}

// AddAddressCommand adds an address to a user's book.
type AddAddressCommand struct {
	UserID  string
	Address domain.Address
}

// OrderEventPublisher emits order lifecycle events to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent describes an order lifecycle change.
type OrderEvent struct {
	Type           string
	OrderID        string
	UserID         string
	PreviousStatus domain.OrderStatus
	CurrentStatus  domain.OrderStatus
	Total          int64
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}
