package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Blob names used by the storefront client. Each blob is a complete JSON snapshot overwritten on every write.
const (
	BlobCart         = "cart"
	BlobUser         = "user"
	BlobWishlist     = "wishlist"
	BlobCheckout     = "checkout"
	BlobHandoff      = "handoff"
	BlobConfirmation = "confirmation"
)

var (
	// ErrNotFound is returned when no blob has been written under the name.
	ErrNotFound = errors.New("storage: blob not found")
	// ErrInvalidName is returned for names outside [a-z0-9_-].
	ErrInvalidName = errors.New("storage: invalid blob name")
)

var blobNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Store persists named blobs. Implementations must make Save atomic with respect to Load:
// a reader sees either the previous snapshot or the new one, never a partial write.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// LoadJSON decodes the named blob into dst. It reports false without error when the blob does not exist.
func LoadJSON(ctx context.Context, store Store, name string, dst any) (bool, error) {
	data, err := store.Load(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("storage: decode blob %s: %w", name, err)
	}
	return true, nil
}

// SaveJSON encodes v and writes it under name.
func SaveJSON(ctx context.Context, store Store, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode blob %s: %w", name, err)
	}
	return store.Save(ctx, name, data)
}

func validateName(name string) error {
	if !blobNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
