package storefront

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hanko-field/storefront/internal/domain"
)

// CheckoutState is the phase of a checkout session.
type CheckoutState int

const (
	// CheckoutBuilding accepts address and shipping changes; items and totals follow the live cart.
	CheckoutBuilding CheckoutState = iota
	// CheckoutFrozen has been handed off to payment and no longer reads the cart.
	CheckoutFrozen
	// CheckoutConsumed has produced an order.
	CheckoutConsumed
)

func (s CheckoutState) String() string {
	switch s {
	case CheckoutFrozen:
		return "frozen"
	case CheckoutConsumed:
		return "consumed"
	default:
		return "building"
	}
}

// CheckoutSnapshot is the frozen content of a checkout session.
type CheckoutSnapshot struct {
	Items          []domain.LineItem     `json:"items"`
	Address        domain.Address        `json:"address"`
	ShippingMethod domain.ShippingMethod `json:"shippingMethod"`
	Totals         domain.Totals         `json:"totals"`
	FrozenAt       time.Time             `json:"frozenAt"`
}

// FrozenCheckout is the single-use token handed from checkout to payment.
type FrozenCheckout = Handoff[CheckoutSnapshot]

// CheckoutSession combines the cart with an address and a shipping method. The cart lines are
// copied only when the session is frozen.
type CheckoutSession struct {
	mu       sync.Mutex
	cart     *Cart
	slot     handoffSlot[CheckoutSnapshot]
	clock    func() time.Time
	state    CheckoutState
	address  *domain.Address
	shipping domain.ShippingMethod
	frozen   *FrozenCheckout
}

func newCheckoutSession(cart *Cart, slot handoffSlot[CheckoutSnapshot], clock func() time.Time) *CheckoutSession {
	return &CheckoutSession{
		cart:  cart,
		slot:  slot,
		clock: clock,
		state: CheckoutBuilding,
	}
}

func resumedCheckoutSession(cart *Cart, slot handoffSlot[CheckoutSnapshot], clock func() time.Time, frozen FrozenCheckout) *CheckoutSession {
	address := frozen.Payload.Address
	return &CheckoutSession{
		cart:     cart,
		slot:     slot,
		clock:    clock,
		state:    CheckoutFrozen,
		address:  &address,
		shipping: frozen.Payload.ShippingMethod,
		frozen:   &frozen,
	}
}

// State returns the current phase.
func (s *CheckoutSession) State() CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Items returns the lines the session prices: the cart while building, the frozen copy after.
func (s *CheckoutSession) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen != nil {
		return domain.CloneLineItems(s.frozen.Payload.Items)
	}
	return s.cart.Items()
}

// Address returns the selected delivery address.
func (s *CheckoutSession) Address() (domain.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.address == nil {
		return domain.Address{}, false
	}
	return *s.address, true
}

// ShippingMethod returns the selected method, empty when none was chosen.
func (s *CheckoutSession) ShippingMethod() domain.ShippingMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipping
}

// SelectAddress sets the delivery address.
func (s *CheckoutSession) SelectAddress(address domain.Address) error {
	if err := validateAddress(address); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != CheckoutBuilding {
		return ErrCheckoutNotEditable
	}
	s.address = &address
	return nil
}

// SelectShipping sets the shipping method.
func (s *CheckoutSession) SelectShipping(method domain.ShippingMethod) error {
	parsed, err := domain.ParseShippingMethod(string(method))
	if err != nil {
		return invalid("shippingMethod", "%s", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != CheckoutBuilding {
		return ErrCheckoutNotEditable
	}
	s.shipping = parsed
	return nil
}

// Totals prices the session items. Before a method is chosen it prices as standard shipping.
func (s *CheckoutSession) Totals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen != nil {
		return s.frozen.Payload.Totals
	}
	return domain.TotalsFor(s.cart.Items(), s.shipping)
}

// Frozen returns the hand-off token once the session is frozen.
func (s *CheckoutSession) Frozen() (FrozenCheckout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen == nil {
		return FrozenCheckout{}, false
	}
	return *s.frozen, true
}

// Freeze moves the session to Frozen and persists the hand-off token for the payment step.
// It requires at least one line, an address and a shipping method; otherwise the session stays in
// Building and a *ValidationError is returned.
func (s *CheckoutSession) Freeze(ctx context.Context) (FrozenCheckout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != CheckoutBuilding {
		return FrozenCheckout{}, ErrCheckoutNotEditable
	}
	items := s.cart.Items()
	switch {
	case len(items) == 0:
		return FrozenCheckout{}, invalid("items", "cart is empty")
	case s.address == nil:
		return FrozenCheckout{}, invalid("address", "no delivery address selected")
	case s.shipping == "":
		return FrozenCheckout{}, invalid("shippingMethod", "no shipping method selected")
	}

	frozen, err := s.slot.issue(ctx, CheckoutSnapshot{
		Items:          items,
		Address:        *s.address,
		ShippingMethod: s.shipping,
		Totals:         domain.TotalsFor(items, s.shipping),
		FrozenAt:       s.clock().UTC(),
	})
	if err != nil {
		return FrozenCheckout{}, err
	}
	s.frozen = &frozen
	s.state = CheckoutFrozen
	return frozen, nil
}

func (s *CheckoutSession) markConsumed(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen != nil && s.frozen.ID == id {
		s.frozen.Consumed = true
		s.state = CheckoutConsumed
	}
}

func validateAddress(address domain.Address) error {
	required := []struct {
		field string
		value string
	}{
		{"firstName", address.FirstName},
		{"addressLine1", address.Line1},
		{"city", address.City},
		{"zipCode", address.PostalCode},
		{"country", address.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid("address."+r.field, "is required")
		}
	}
	return nil
}
