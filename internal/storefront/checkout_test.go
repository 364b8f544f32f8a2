package storefront

import (
	"context"
	"errors"
	"testing"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/storage"
)

func TestCheckoutFreezeRequiresItemsAddressAndShipping(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, storage.NewMemoryStore(), nil, nil)

	session, err := store.BeginCheckout(ctx, BeginCheckoutOptions{ShippingMethod: domain.ShippingStandard})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = session.SelectAddress(homeAddress())
	assertFreezeInvalid(t, session, "items")

	_ = store.Cart().Add(ctx, tee, 1, "M", "Black")

	noAddress, _ := store.BeginCheckout(ctx, BeginCheckoutOptions{ShippingMethod: domain.ShippingStandard})
	assertFreezeInvalid(t, noAddress, "address")

	noShipping, _ := store.BeginCheckout(ctx, BeginCheckoutOptions{})
	_ = noShipping.SelectAddress(homeAddress())
	assertFreezeInvalid(t, noShipping, "shippingMethod")

	frozen, err := session.Freeze(ctx)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if session.State() != CheckoutFrozen {
		t.Fatalf("expected frozen, got %s", session.State())
	}
	if frozen.Kind != handoffKindCheckout || len(frozen.Payload.Items) != 1 {
		t.Fatalf("unexpected frozen token %+v", frozen)
	}
}

func assertFreezeInvalid(t *testing.T, session *CheckoutSession, field string) {
	t.Helper()
	_, err := session.Freeze(context.Background())
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != field {
		t.Fatalf("expected validation error on %s, got %v", field, err)
	}
	if session.State() != CheckoutBuilding {
		t.Fatalf("expected session to stay building, got %s", session.State())
	}
}

func TestCheckoutSelectAddressValidates(t *testing.T) {
	store := newTestStore(t, storage.NewMemoryStore(), nil, nil)
	session, _ := store.BeginCheckout(context.Background(), BeginCheckoutOptions{})

	address := homeAddress()
	address.PostalCode = " "
	var vErr *ValidationError
	if err := session.SelectAddress(address); !errors.As(err, &vErr) || vErr.Field != "address.zipCode" {
		t.Fatalf("expected zip code validation error, got %v", err)
	}
	if err := session.SelectShipping("drone"); !errors.As(err, &vErr) {
		t.Fatalf("expected shipping validation error, got %v", err)
	}
}

func TestCheckoutFrozenIsNotEditable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, storage.NewMemoryStore(), nil, nil)
	_ = store.Cart().Add(ctx, tee, 1, "", "")
	session, _ := store.BeginCheckout(ctx, BeginCheckoutOptions{ShippingMethod: domain.ShippingExpress})
	_ = session.SelectAddress(homeAddress())
	if _, err := session.Freeze(ctx); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if err := session.SelectShipping(domain.ShippingStandard); !errors.Is(err, ErrCheckoutNotEditable) {
		t.Fatalf("expected not editable, got %v", err)
	}
	if err := session.SelectAddress(homeAddress()); !errors.Is(err, ErrCheckoutNotEditable) {
		t.Fatalf("expected not editable, got %v", err)
	}

	_ = store.Cart().Add(ctx, hoodie, 1, "", "")
	if got := session.Totals().Subtotal; got != 200 {
		t.Fatalf("frozen session must not follow the cart, subtotal %d", got)
	}
}

func TestTotalsAgreeAcrossPreviewCheckoutAndPayment(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, storage.NewMemoryStore(), nil, nil)
	_ = store.Cart().Add(ctx, tee, 2, "M", "Black")

	for _, method := range []domain.ShippingMethod{domain.ShippingStandard, domain.ShippingExpress} {
		session, _ := store.BeginCheckout(ctx, BeginCheckoutOptions{ShippingMethod: method})
		_ = session.SelectAddress(homeAddress())
		preview := store.Preview(method)
		building := session.Totals()
		frozen, err := session.Freeze(ctx)
		if err != nil {
			t.Fatalf("freeze: %v", err)
		}
		if preview != building || building != frozen.Payload.Totals {
			t.Fatalf("%s: totals disagree preview=%+v checkout=%+v payment=%+v", method, preview, building, frozen.Payload.Totals)
		}
	}

	if got := store.Preview(domain.ShippingStandard); got != (domain.Totals{Subtotal: 400, Tax: 72, Shipping: 50, Total: 522}) {
		t.Fatalf("unexpected standard preview %+v", got)
	}
}

func TestCheckoutBuildingFollowsCartEdits(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, storage.NewMemoryStore(), nil, nil)
	_ = store.Cart().Add(ctx, tee, 1, "M", "Black")

	session, err := store.BeginCheckout(ctx, BeginCheckoutOptions{ShippingMethod: domain.ShippingStandard})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = session.SelectAddress(homeAddress())

	_ = store.Cart().Add(ctx, hoodie, 1, "L", "")
	if got, want := session.Totals(), store.Preview(domain.ShippingStandard); got != want {
		t.Fatalf("checkout totals %+v, cart preview %+v", got, want)
	}
	if got := len(session.Items()); got != 2 {
		t.Fatalf("expected both cart lines in checkout, got %d", got)
	}

	frozen, err := session.Freeze(ctx)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if len(frozen.Payload.Items) != 2 || frozen.Payload.Totals != store.Preview(domain.ShippingStandard) {
		t.Fatalf("unexpected frozen snapshot %+v", frozen.Payload)
	}
}

func TestCheckoutFreezeRejectsCartEmptiedWhileBuilding(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, storage.NewMemoryStore(), nil, nil)
	_ = store.Cart().Add(ctx, tee, 1, "M", "Black")

	session, _ := store.BeginCheckout(ctx, BeginCheckoutOptions{ShippingMethod: domain.ShippingExpress})
	_ = session.SelectAddress(homeAddress())
	_ = store.Cart().Remove(ctx, tee.ID, "M", "Black")

	if got := session.Totals(); got.Subtotal != 0 {
		t.Fatalf("expected empty checkout subtotal, got %+v", got)
	}
	assertFreezeInvalid(t, session, "items")
}

func TestBeginCheckoutConsumesAddressHandoff(t *testing.T) {
	ctx := context.Background()
	addresses := &stubAddressAPI{
		listFn: func(context.Context, string) ([]domain.Address, error) {
			return []domain.Address{homeAddress()}, nil
		},
	}
	store := newTestStore(t, storage.NewMemoryStore(), addresses, nil)
	signIn(t, store)
	if res := store.Addresses().Load(ctx); res.State != LoadSucceeded {
		t.Fatalf("load addresses: %+v", res)
	}

	chosen, err := store.Addresses().Choose(ctx, "adr_1")
	if err != nil {
		t.Fatalf("choose: %v", err)
	}

	session, err := store.BeginCheckout(ctx, BeginCheckoutOptions{AddressToken: chosen.ID})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	address, ok := session.Address()
	if !ok || address.ID != "adr_1" {
		t.Fatalf("expected pre-selected address, got %+v %v", address, ok)
	}

	if _, err := store.BeginCheckout(ctx, BeginCheckoutOptions{AddressToken: chosen.ID}); !errors.Is(err, ErrHandoffConsumed) {
		t.Fatalf("expected stale address hand-off to be rejected, got %v", err)
	}
}

func TestBeginCheckoutKeepsAddressHandoffWhenAddressInvalid(t *testing.T) {
	ctx := context.Background()
	incomplete := homeAddress()
	incomplete.PostalCode = ""
	addresses := &stubAddressAPI{
		listFn: func(context.Context, string) ([]domain.Address, error) {
			return []domain.Address{incomplete}, nil
		},
	}
	store := newTestStore(t, storage.NewMemoryStore(), addresses, nil)
	signIn(t, store)
	store.Addresses().Load(ctx)

	chosen, err := store.Addresses().Choose(ctx, "adr_1")
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	var vErr *ValidationError
	if _, err := store.BeginCheckout(ctx, BeginCheckoutOptions{AddressToken: chosen.ID}); !errors.As(err, &vErr) || vErr.Field != "address.zipCode" {
		t.Fatalf("expected zip code validation error, got %v", err)
	}
	if _, err := store.addressSlot.peek(ctx, chosen.ID); err != nil {
		t.Fatalf("expected hand-off to stay usable after a rejected address, got %v", err)
	}
}

func TestResumeCheckoutAfterRestart(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	store := newTestStore(t, blobs, nil, nil)

	if _, err := store.ResumeCheckout(ctx); !errors.Is(err, ErrHandoffNotFound) {
		t.Fatalf("expected nothing to resume, got %v", err)
	}

	_ = store.Cart().Add(ctx, hoodie, 2, "", "")
	session, _ := store.BeginCheckout(ctx, BeginCheckoutOptions{ShippingMethod: domain.ShippingStandard})
	_ = session.SelectAddress(homeAddress())
	frozen, err := session.Freeze(ctx)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}

	restarted := newTestStore(t, blobs, nil, nil)
	resumed, err := restarted.ResumeCheckout(ctx)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	got, ok := resumed.Frozen()
	if !ok || got.ID != frozen.ID || resumed.State() != CheckoutFrozen {
		t.Fatalf("unexpected resumed session %+v state=%s", got, resumed.State())
	}
	if resumed.Totals() != frozen.Payload.Totals {
		t.Fatalf("expected frozen totals %+v, got %+v", frozen.Payload.Totals, resumed.Totals())
	}
}
