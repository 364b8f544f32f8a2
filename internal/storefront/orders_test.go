package storefront

import (
	"context"
	"errors"
	"testing"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/storage"
)

func TestOrderHistoryLoadAndGet(t *testing.T) {
	ctx := context.Background()
	orders := &stubOrderAPI{
		listFn: func(context.Context, string) ([]domain.OrderSummary, error) {
			return []domain.OrderSummary{{ID: "ord_1", Total: 522, Status: domain.OrderStatusPending, CreatedAt: testNow}}, nil
		},
		getFn: func(_ context.Context, _ string, id string) (domain.Order, error) {
			if id != "ord_1" {
				return domain.Order{}, &NotFoundError{Resource: "order", ID: id}
			}
			return domain.Order{ID: id, Status: domain.OrderStatusPending}, nil
		},
	}
	store := newTestStore(t, storage.NewMemoryStore(), nil, orders)
	signIn(t, store)

	res := store.Orders().Load(ctx)
	if res.State != LoadSucceeded || len(res.Value) != 1 || res.Value[0].Total != 522 {
		t.Fatalf("unexpected orders %+v", res)
	}

	order, err := store.Orders().Get(ctx, "ord_1")
	if err != nil || order.ID != "ord_1" {
		t.Fatalf("unexpected order %+v %v", order, err)
	}
	var nf *NotFoundError
	if _, err := store.Orders().Get(ctx, "ord_x"); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreSignOutClearsSessionData(t *testing.T) {
	ctx := context.Background()
	orders := &stubOrderAPI{
		listFn: func(context.Context, string) ([]domain.OrderSummary, error) {
			return []domain.OrderSummary{{ID: "ord_1"}}, nil
		},
	}
	store := newTestStore(t, storage.NewMemoryStore(), nil, orders)
	signIn(t, store)
	store.Orders().Load(ctx)

	_ = store.Cart().Add(ctx, tee, 1, "M", "Black")
	session, _ := store.BeginCheckout(ctx, BeginCheckoutOptions{ShippingMethod: domain.ShippingStandard})
	_ = session.SelectAddress(homeAddress())
	if _, err := session.Freeze(ctx); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if err := store.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if store.Session().Authenticated() {
		t.Fatalf("expected signed out")
	}
	if _, ok := store.Session().Profile(); ok {
		t.Fatalf("expected profile cleared")
	}
	if len(store.Orders().Current().Value) != 0 {
		t.Fatalf("expected cached orders cleared")
	}
	if _, err := store.ResumeCheckout(ctx); !errors.Is(err, ErrHandoffNotFound) {
		t.Fatalf("expected frozen checkout discarded on sign out, got %v", err)
	}
}

func TestNewStoreValidatesDeps(t *testing.T) {
	if _, err := NewStore(context.Background(), StoreDeps{}); err == nil {
		t.Fatalf("expected error without blob store")
	}
	if _, err := NewStore(context.Background(), StoreDeps{Blobs: storage.NewMemoryStore()}); err == nil {
		t.Fatalf("expected error without apis")
	}
}
