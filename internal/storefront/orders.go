package storefront

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/hanko-field/storefront/internal/domain"
)

// OrderHistory lists the signed-in user's orders.
type OrderHistory struct {
	session *Session
	api     OrderAPI
	loader  *Loader[[]domain.OrderSummary]
	group   singleflight.Group
}

func newOrderHistory(session *Session, api OrderAPI) *OrderHistory {
	h := &OrderHistory{session: session, api: api}
	h.loader = NewLoader(func(ctx context.Context) ([]domain.OrderSummary, error) {
		token, err := h.session.Credential()
		if err != nil {
			return nil, err
		}
		return h.api.ListMyOrders(ctx, token)
	})
	return h
}

// Load fetches the order summaries, cancelling a load already in flight.
func (h *OrderHistory) Load(ctx context.Context) Result[[]domain.OrderSummary] {
	return h.loader.Load(ctx)
}

// Current returns the last load result.
func (h *OrderHistory) Current() Result[[]domain.OrderSummary] {
	return h.loader.Current()
}

// Get fetches one order. Concurrent lookups of the same id share a request.
func (h *OrderHistory) Get(ctx context.Context, orderID string) (domain.Order, error) {
	token, err := h.session.Credential()
	if err != nil {
		return domain.Order{}, err
	}
	v, err, _ := h.group.Do(orderID, func() (any, error) {
		return h.api.GetOrder(ctx, token, orderID)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return v.(domain.Order), nil
}
