package storefront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/storage"
)

// OrderConfirmation is what the confirmation view shows after a successful submission.
type OrderConfirmation struct {
	OrderID       string               `json:"orderId"`
	Status        domain.OrderStatus   `json:"status"`
	Items         []domain.LineItem    `json:"items"`
	Address       domain.Address       `json:"address"`
	Totals        domain.Totals        `json:"totals"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	TransactionID string               `json:"transactionId"`
	PlacedAt      time.Time            `json:"placedAt"`
}

// OrderSubmitter turns a frozen checkout into an order.
type OrderSubmitter struct {
	session  *Session
	cart     *Cart
	checkout handoffSlot[CheckoutSnapshot]
	blobs    storage.Store
	orders   OrderAPI
	clock    func() time.Time
	logger   Logger
}

// Submit sends the frozen checkout with the payment selection to the order API.
//
// On success the cart is cleared, the hand-off token is marked consumed and the confirmation is
// persisted. If one of those local writes fails the confirmation is still returned together with
// the error, because the order exists server side.
//
// On failure nothing local changes and the same token may be submitted again; the token id is
// sent as the idempotency key so a resubmission cannot create a second order.
func (s *OrderSubmitter) Submit(ctx context.Context, frozen FrozenCheckout, payment PaymentSelection) (OrderConfirmation, error) {
	token, err := s.session.Credential()
	if err != nil {
		return OrderConfirmation{}, err
	}
	if err := payment.Validate(); err != nil {
		return OrderConfirmation{}, err
	}

	current, err := s.checkout.peek(ctx, frozen.ID)
	if err != nil {
		return OrderConfirmation{}, err
	}
	snapshot := current.Payload
	if len(snapshot.Items) == 0 {
		return OrderConfirmation{}, invalid("items", "checkout has no items")
	}
	totals := domain.TotalsFor(snapshot.Items, snapshot.ShippingMethod)
	if totals != snapshot.Totals {
		return OrderConfirmation{}, invalid("totals", "frozen totals do not match the items")
	}

	now := s.clock()
	details := payment.details(now, totals.Total)
	order, err := s.orders.CreateOrder(ctx, token, OrderDraft{
		Items:           snapshot.Items,
		ShippingAddress: snapshot.Address,
		ShippingMethod:  snapshot.ShippingMethod,
		PaymentMethod:   payment.Method,
		PaymentDetails:  details,
		Totals:          totals,
	}, frozen.ID)
	if err != nil {
		s.logger(ctx, "checkout.submit.failed", map[string]any{"checkoutId": frozen.ID, "error": err})
		return OrderConfirmation{}, err
	}

	confirmation := OrderConfirmation{
		OrderID:       order.ID,
		Status:        order.Status,
		Items:         domain.CloneLineItems(snapshot.Items),
		Address:       snapshot.Address,
		Totals:        totals,
		PaymentMethod: payment.Method,
		TransactionID: details.TransactionID,
		PlacedAt:      now.UTC(),
	}
	if order.Payment.TransactionID != "" {
		confirmation.TransactionID = order.Payment.TransactionID
	}
	if !order.CreatedAt.IsZero() {
		confirmation.PlacedAt = order.CreatedAt.UTC()
	}

	var errs []error
	if _, err := s.checkout.consume(ctx, frozen.ID); err != nil {
		errs = append(errs, fmt.Errorf("consume checkout: %w", err))
	}
	if err := s.cart.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear cart: %w", err))
	}
	if err := storage.SaveJSON(ctx, s.blobs, storage.BlobConfirmation, confirmation); err != nil {
		errs = append(errs, fmt.Errorf("save confirmation: %w", err))
	}

	s.logger(ctx, "checkout.submit.succeeded", map[string]any{
		"checkoutId": frozen.ID,
		"orderId":    order.ID,
		"status":     string(order.Status),
		"total":      totals.Total,
	})
	return confirmation, errors.Join(errs...)
}
