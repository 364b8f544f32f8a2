package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/hanko-field/storefront/internal/domain"
)

// Registry exposes the repositories of one backend.
type Registry interface {
	Orders() OrderRepository
	Addresses() AddressRepository
	// Ping reports whether the backend is reachable. Used by the readiness probe.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderMutation edits an order in place. Returning an error aborts the write.
type OrderMutation func(order *domain.Order) error

// OrderRepository persists orders. Orders are append-only apart from status and payment,
// which change through Mutate.
type OrderRepository interface {
	// Insert stores a new order and fails with a conflict error when the id is taken.
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// Mutate reads the order, applies fn and writes the result atomically.
	Mutate(ctx context.Context, orderID string, fn OrderMutation) (domain.Order, error)
}

// AddressRepository stores delivery addresses per user.
type AddressRepository interface {
	// List returns the user's addresses in creation order.
	List(ctx context.Context, userID string) ([]domain.Address, error)
	// Save stores addr unless an address with the same AddressHash exists, in which case the
	// existing one is returned. When addr is the default every other address loses the flag.
	Save(ctx context.Context, userID string, addr domain.Address) (domain.Address, error)
	// Delete removes the address and fails with a not-found error when it does not exist.
	Delete(ctx context.Context, userID, addressID string) error
}

// AddressHash identifies an address by its normalised delivery fields so resubmitting the same
// address does not create a duplicate.
func AddressHash(addr domain.Address) string {
	parts := []string{
		addr.FirstName,
		addr.LastName,
		addr.Line1,
		addr.Line2,
		addr.City,
		addr.State,
		addr.PostalCode,
		addr.Country,
	}
	for i, part := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(part))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// IsNotFound reports whether err is a RepositoryError classified as not found.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return asRepositoryError(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err is a RepositoryError classified as a conflict.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return asRepositoryError(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err is a RepositoryError classified as unavailable.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return asRepositoryError(err, &repoErr) && repoErr.IsUnavailable()
}
