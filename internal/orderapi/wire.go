// Package orderapi holds the JSON wire format of the storefront REST API and the HTTP client
// shopctl uses to talk to it.
package orderapi

import (
	"time"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/storefront"
)

// IdempotencyHeader carries the client-chosen key that makes order creation safe to resubmit.
const IdempotencyHeader = "Idempotency-Key"

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Items           []domain.LineItem     `json:"items"`
	ShippingAddress domain.Address        `json:"shippingAddress"`
	ShippingMethod  domain.ShippingMethod `json:"shippingMethod,omitempty"`
	PaymentMethod   domain.PaymentMethod  `json:"paymentMethod"`
	PaymentDetails  domain.PaymentDetails `json:"paymentDetails"`
	Subtotal        int64                 `json:"subtotal"`
	Tax             int64                 `json:"tax"`
	Shipping        int64                 `json:"shipping"`
	Total           int64                 `json:"total"`
}

// NewCreateOrderRequest encodes a checkout draft.
func NewCreateOrderRequest(draft storefront.OrderDraft) CreateOrderRequest {
	return CreateOrderRequest{
		Items:           draft.Items,
		ShippingAddress: draft.ShippingAddress,
		ShippingMethod:  draft.ShippingMethod,
		PaymentMethod:   draft.PaymentMethod,
		PaymentDetails:  draft.PaymentDetails,
		Subtotal:        draft.Totals.Subtotal,
		Tax:             draft.Totals.Tax,
		Shipping:        draft.Totals.Shipping,
		Total:           draft.Totals.Total,
	}
}

// Totals returns the client-side totals claimed by the request.
func (r CreateOrderRequest) Totals() domain.Totals {
	return domain.Totals{Subtotal: r.Subtotal, Tax: r.Tax, Shipping: r.Shipping, Total: r.Total}
}

// Order is the JSON shape of an order.
type Order struct {
	ID              string                `json:"id"`
	UserID          string                `json:"userId,omitempty"`
	Items           []domain.LineItem     `json:"items"`
	ShippingAddress domain.Address        `json:"shippingAddress"`
	ShippingMethod  domain.ShippingMethod `json:"shippingMethod,omitempty"`
	PaymentMethod   domain.PaymentMethod  `json:"paymentMethod"`
	PaymentDetails  domain.PaymentDetails `json:"paymentDetails"`
	Subtotal        int64                 `json:"subtotal"`
	Tax             int64                 `json:"tax"`
	Shipping        int64                 `json:"shipping"`
	Total           int64                 `json:"total"`
	Status          domain.OrderStatus    `json:"status"`
	CancelReason    string                `json:"cancelReason,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// OrderFromDomain encodes order.
func OrderFromDomain(order domain.Order) Order {
	return Order{
		ID:              order.ID,
		UserID:          order.UserID,
		Items:           domain.CloneLineItems(order.Items),
		ShippingAddress: order.ShippingAddress,
		ShippingMethod:  order.ShippingMethod,
		PaymentMethod:   order.PaymentMethod,
		PaymentDetails:  order.Payment,
		Subtotal:        order.Totals.Subtotal,
		Tax:             order.Totals.Tax,
		Shipping:        order.Totals.Shipping,
		Total:           order.Totals.Total,
		Status:          order.Status,
		CancelReason:    order.CancelReason,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

// ToDomain decodes o.
func (o Order) ToDomain() domain.Order {
	return domain.Order{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           domain.CloneLineItems(o.Items),
		ShippingAddress: o.ShippingAddress,
		ShippingMethod:  o.ShippingMethod,
		PaymentMethod:   o.PaymentMethod,
		Payment:         o.PaymentDetails,
		Totals:          domain.Totals{Subtotal: o.Subtotal, Tax: o.Tax, Shipping: o.Shipping, Total: o.Total},
		Status:          o.Status,
		CancelReason:    o.CancelReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// OrderEnvelope wraps a single order response.
type OrderEnvelope struct {
	Order Order `json:"order"`
}

// OrderListEnvelope is the body of GET /orders/mine.
type OrderListEnvelope struct {
	Orders []domain.OrderSummary `json:"orders"`
}

// AddressListEnvelope is returned by every address endpoint.
type AddressListEnvelope struct {
	Addresses []domain.Address `json:"addresses"`
}

// UpdatePaymentRequest is the body of PUT /orders/{id}/payment.
type UpdatePaymentRequest struct {
	Status        domain.PaymentStatus `json:"paymentStatus"`
	TransactionID string               `json:"transactionId"`
}

// CancelOrderRequest is the body of POST /orders/{id}:cancel.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse mirrors the error envelope written by the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}
