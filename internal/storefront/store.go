package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/storage"
)

const (
	handoffKindAddress  = "address"
	handoffKindCheckout = "checkout"
)

// Logger records structured client events.
type Logger func(ctx context.Context, event string, fields map[string]any)

// StoreDeps bundles the collaborators of a Store.
type StoreDeps struct {
	Blobs     storage.Store
	Addresses AddressAPI
	Orders    OrderAPI
	LoginURL  string
	Clock     func() time.Time
	NewID     func() string
	Logger    Logger
}

// Store owns all client-side state: cart, wishlist, session, address book, order history and
// checkout. Consumers receive it explicitly.
type Store struct {
	blobs     storage.Store
	clock     func() time.Time
	logger    Logger
	cart      *Cart
	wishlist  *Wishlist
	session   *Session
	addresses *AddressBook
	orders    *OrderHistory
	submitter *OrderSubmitter

	addressSlot  handoffSlot[domain.Address]
	checkoutSlot handoffSlot[CheckoutSnapshot]

	mu     sync.Mutex
	active *CheckoutSession
}

// NewStore restores persisted state from deps.Blobs.
func NewStore(ctx context.Context, deps StoreDeps) (*Store, error) {
	if deps.Blobs == nil {
		return nil, errors.New("storefront: blob store is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("storefront: address api is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("storefront: order api is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	cart, err := loadCart(ctx, deps.Blobs)
	if err != nil {
		return nil, err
	}
	wishlist, err := loadWishlist(ctx, deps.Blobs)
	if err != nil {
		return nil, err
	}
	session, err := loadSession(ctx, deps.Blobs, deps.LoginURL)
	if err != nil {
		return nil, err
	}

	s := &Store{
		blobs:    deps.Blobs,
		clock:    clock,
		logger:   logger,
		cart:     cart,
		wishlist: wishlist,
		session:  session,
		addressSlot: handoffSlot[domain.Address]{
			blobs: deps.Blobs, blob: storage.BlobHandoff, kind: handoffKindAddress, clock: clock, newID: newID,
		},
		checkoutSlot: handoffSlot[CheckoutSnapshot]{
			blobs: deps.Blobs, blob: storage.BlobCheckout, kind: handoffKindCheckout, clock: clock, newID: newID,
		},
	}
	s.addresses = newAddressBook(session, deps.Addresses, s.addressSlot)
	s.orders = newOrderHistory(session, deps.Orders)
	s.submitter = &OrderSubmitter{
		session:  session,
		cart:     cart,
		checkout: s.checkoutSlot,
		blobs:    deps.Blobs,
		orders:   deps.Orders,
		clock:    clock,
		logger:   logger,
	}
	return s, nil
}

func (s *Store) Cart() *Cart                { return s.cart }
func (s *Store) Wishlist() *Wishlist        { return s.wishlist }
func (s *Store) Session() *Session          { return s.session }
func (s *Store) Addresses() *AddressBook    { return s.addresses }
func (s *Store) Orders() *OrderHistory      { return s.orders }
func (s *Store) Submitter() *OrderSubmitter { return s.submitter }

// Preview prices the cart as the cart page shows it.
func (s *Store) Preview(method domain.ShippingMethod) domain.Totals {
	return domain.ComputeTotals(s.cart.TotalValue(), method)
}

// BeginCheckoutOptions seeds a new checkout session.
type BeginCheckoutOptions struct {
	// AddressToken is the id of an address hand-off issued by AddressBook.Choose. It is consumed
	// once the address it carries has been accepted.
	AddressToken   string
	ShippingMethod domain.ShippingMethod
}

// BeginCheckout opens a Building session over the cart.
func (s *Store) BeginCheckout(ctx context.Context, opts BeginCheckoutOptions) (*CheckoutSession, error) {
	session := newCheckoutSession(s.cart, s.checkoutSlot, s.clock)
	if opts.ShippingMethod != "" {
		if err := session.SelectShipping(opts.ShippingMethod); err != nil {
			return nil, err
		}
	}
	if opts.AddressToken != "" {
		chosen, err := s.addressSlot.peek(ctx, opts.AddressToken)
		if err != nil {
			return nil, err
		}
		if err := session.SelectAddress(chosen.Payload); err != nil {
			return nil, err
		}
		if _, err := s.addressSlot.consume(ctx, opts.AddressToken); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.active = session
	s.mu.Unlock()
	return session, nil
}

// ResumeCheckout restores the frozen session persisted by a previous Freeze.
func (s *Store) ResumeCheckout(ctx context.Context) (*CheckoutSession, error) {
	frozen, found, err := s.checkoutSlot.latest(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrHandoffNotFound
	}
	if frozen.Consumed {
		return nil, ErrHandoffConsumed
	}
	session := resumedCheckoutSession(s.cart, s.checkoutSlot, s.clock, frozen)

	s.mu.Lock()
	s.active = session
	s.mu.Unlock()
	return session, nil
}

// Submit places the order for frozen and marks the matching session consumed.
func (s *Store) Submit(ctx context.Context, frozen FrozenCheckout, payment PaymentSelection) (OrderConfirmation, error) {
	confirmation, err := s.submitter.Submit(ctx, frozen, payment)
	if confirmation.OrderID == "" {
		return confirmation, err
	}
	s.mu.Lock()
	if s.active != nil {
		s.active.markConsumed(frozen.ID)
		s.active = nil
	}
	s.mu.Unlock()
	return confirmation, err
}

// LastConfirmation returns the confirmation of the most recent order placed from this device.
func (s *Store) LastConfirmation(ctx context.Context) (OrderConfirmation, bool, error) {
	var confirmation OrderConfirmation
	found, err := storage.LoadJSON(ctx, s.blobs, storage.BlobConfirmation, &confirmation)
	if err != nil || !found {
		return OrderConfirmation{}, false, err
	}
	return confirmation, true, nil
}

// SignOut clears the session, the pending hand-offs and the cached remote data of the previous user.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.session.SignOut(ctx); err != nil {
		return err
	}
	s.addresses.loader.Set(nil)
	s.orders.loader.Set(nil)

	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()

	if err := s.addressSlot.discard(ctx); err != nil {
		return err
	}
	return s.checkoutSlot.discard(ctx)
}
