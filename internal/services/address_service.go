package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	addressIDPrefix     = "adr_"
	maxAddressFieldSize = 200
)

var (
	// ErrAddressInvalidInput indicates a malformed address.
	ErrAddressInvalidInput = errors.New("address: invalid input")
	// ErrAddressNotFound indicates the address does not exist for the user.
	ErrAddressNotFound = errors.New("address: not found")
)

// AddressServiceDeps bundles the collaborators required to construct an address service.
type AddressServiceDeps struct {
	Addresses   repositories.AddressRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type addressService struct {
	addresses repositories.AddressRepository
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy
}

// NewAddressService constructs an AddressService.
func NewAddressService(deps AddressServiceDeps) (AddressService, error) {
	if deps.Addresses == nil {
		return nil, errors.New("address service: address repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &addressService{
		addresses: deps.Addresses,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:     idGen,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (s *addressService) List(ctx context.Context, userID string) ([]domain.Address, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrAddressInvalidInput)
	}
	items, err := s.addresses.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Address{}
	}
	return items, nil
}

func (s *addressService) Add(ctx context.Context, cmd AddAddressCommand) ([]domain.Address, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrAddressInvalidInput)
	}
	addr, err := sanitizeAddress(s.sanitizer, cmd.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAddressInvalidInput, err)
	}

	existing, err := s.addresses.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	addr.ID = addressIDPrefix + s.newID()
	addr.CreatedAt = s.clock()
	if len(existing) == 0 {
		addr.IsDefault = true
	}

	saved, err := s.addresses.Save(ctx, userID, addr)
	if err != nil {
		return nil, err
	}
	if saved.ID != addr.ID {
		s.logger(ctx, "address.duplicate", map[string]any{
			"userId":    userID,
			"addressId": saved.ID,
		})
	}
	return s.List(ctx, userID)
}

func (s *addressService) Delete(ctx context.Context, userID, addressID string) ([]domain.Address, error) {
	userID = strings.TrimSpace(userID)
	addressID = strings.TrimSpace(addressID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrAddressInvalidInput)
	}
	if addressID == "" {
		return nil, fmt.Errorf("%w: address id is required", ErrAddressInvalidInput)
	}
	if err := s.addresses.Delete(ctx, userID, addressID); err != nil {
		if repositories.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, addressID)
		}
		return nil, err
	}
	return s.List(ctx, userID)
}

// sanitizeAddress strips markup from every text field and checks the delivery fields are present.
func sanitizeAddress(policy *bluemonday.Policy, addr domain.Address) (domain.Address, error) {
	clean := func(value string) string {
		value = strings.TrimSpace(html.UnescapeString(policy.Sanitize(strings.TrimSpace(value))))
		if runes := []rune(value); len(runes) > maxAddressFieldSize {
			value = string(runes[:maxAddressFieldSize])
		}
		return value
	}
	addr.ID = strings.TrimSpace(addr.ID)
	addr.FirstName = clean(addr.FirstName)
	addr.LastName = clean(addr.LastName)
	addr.Phone = clean(addr.Phone)
	addr.Line1 = clean(addr.Line1)
	addr.Line2 = clean(addr.Line2)
	addr.City = clean(addr.City)
	addr.State = clean(addr.State)
	addr.PostalCode = clean(addr.PostalCode)
	addr.Country = clean(addr.Country)

	required := []struct {
		name  string
		value string
	}{
		{"firstName", addr.FirstName},
		{"addressLine1", addr.Line1},
		{"city", addr.City},
		{"zipCode", addr.PostalCode},
		{"country", addr.Country},
	}
	var missing []string
	for _, field := range required {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return domain.Address{}, fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return addr, nil
}
