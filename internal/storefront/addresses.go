package storefront

import (
	"context"
	"errors"

	"github.com/hanko-field/storefront/internal/domain"
)

// AddressBook caches the signed-in user's addresses. The server response after each call
// replaces the cache wholesale.
type AddressBook struct {
	session *Session
	api     AddressAPI
	loader  *Loader[[]domain.Address]
	choices handoffSlot[domain.Address]
}

func newAddressBook(session *Session, api AddressAPI, choices handoffSlot[domain.Address]) *AddressBook {
	b := &AddressBook{session: session, api: api, choices: choices}
	b.loader = NewLoader(func(ctx context.Context) ([]domain.Address, error) {
		token, err := b.session.Credential()
		if err != nil {
			return nil, err
		}
		return b.api.ListAddresses(ctx, token)
	})
	return b
}

// Load fetches the address list, cancelling a load already in flight.
func (b *AddressBook) Load(ctx context.Context) Result[[]domain.Address] {
	return b.loader.Load(ctx)
}

// Current returns the last load result.
func (b *AddressBook) Current() Result[[]domain.Address] {
	return b.loader.Current()
}

// Add creates address and returns the new full list.
func (b *AddressBook) Add(ctx context.Context, address domain.Address) ([]domain.Address, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}
	token, err := b.session.Credential()
	if err != nil {
		return nil, err
	}
	list, err := b.api.AddAddress(ctx, token, address)
	if err != nil {
		return nil, err
	}
	b.loader.Set(list)
	return list, nil
}

// Delete removes the address. When the server no longer knows the id the cache is reloaded
// and the *NotFoundError is still returned.
func (b *AddressBook) Delete(ctx context.Context, addressID string) ([]domain.Address, error) {
	token, err := b.session.Credential()
	if err != nil {
		return nil, err
	}
	list, err := b.api.DeleteAddress(ctx, token, addressID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			b.loader.Load(ctx)
		}
		return nil, err
	}
	b.loader.Set(list)
	return list, nil
}

// Default returns the default address, or the first one when none is flagged.
func (b *AddressBook) Default() (domain.Address, bool) {
	list := b.loader.Current().Value
	for _, address := range list {
		if address.IsDefault {
			return address, true
		}
	}
	if len(list) > 0 {
		return list[0], true
	}
	return domain.Address{}, false
}

// Choose issues a single-use hand-off carrying the address with addressID to the checkout step.
func (b *AddressBook) Choose(ctx context.Context, addressID string) (Handoff[domain.Address], error) {
	for _, address := range b.loader.Current().Value {
		if address.ID == addressID {
			return b.choices.issue(ctx, address)
		}
	}
	return Handoff[domain.Address]{}, &NotFoundError{Resource: "address", ID: addressID}
}
