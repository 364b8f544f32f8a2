package storefront

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when no bearer credential is available.
	ErrNotAuthenticated = errors.New("storefront: not authenticated")
	// ErrHandoffNotFound is returned when a hand-off token id does not match the stored token.
	ErrHandoffNotFound = errors.New("storefront: hand-off token not found")
	// ErrHandoffConsumed is returned when a hand-off token is used a second time.
	ErrHandoffConsumed = errors.New("storefront: hand-off token already consumed")
	// ErrCheckoutNotEditable is returned when a frozen or consumed session is modified.
	ErrCheckoutNotEditable = errors.New("storefront: checkout session is not editable")
	// ErrNotInWishlist is returned by MoveToCart for products that are not saved.
	ErrNotInWishlist = errors.New("storefront: product not in wishlist")
	// ErrLoadSuperseded is reported by a load that was cancelled because a newer load started.
	ErrLoadSuperseded = errors.New("storefront: load superseded by a newer request")
)

// ValidationError reports input the user can correct: a malformed quantity or a missing checkout selection.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("storefront: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NetworkError reports an unreachable API or a non-2xx response other than 404.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("storefront: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("storefront: %s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError reports an address or order id the server does not know.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storefront: %s %q not found", e.Resource, e.ID)
}

// AuthRequiredError carries the login location the caller should redirect to.
type AuthRequiredError struct {
	LoginURL string
}

func (e *AuthRequiredError) Error() string {
	if e.LoginURL == "" {
		return ErrNotAuthenticated.Error()
	}
	return fmt.Sprintf("%s: sign in at %s", ErrNotAuthenticated, e.LoginURL)
}

func (e *AuthRequiredError) Unwrap() error { return ErrNotAuthenticated }
