package storefront

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/storage"
)

// Wishlist holds saved-for-later products keyed by product id only.
type Wishlist struct {
	mu    sync.Mutex
	blobs storage.Store
	items []domain.Product
}

func loadWishlist(ctx context.Context, blobs storage.Store) (*Wishlist, error) {
	var stored []domain.Product
	if _, err := storage.LoadJSON(ctx, blobs, storage.BlobWishlist, &stored); err != nil {
		return nil, err
	}
	items := make([]domain.Product, 0, len(stored))
	seen := make(map[string]struct{}, len(stored))
	for _, product := range stored {
		id := strings.TrimSpace(product.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, product)
	}
	return &Wishlist{blobs: blobs, items: items}, nil
}

// Add saves product. Adding a product already present keeps the existing entry.
func (w *Wishlist) Add(ctx context.Context, product domain.Product) error {
	product.ID = strings.TrimSpace(product.ID)
	if product.ID == "" {
		return invalid("productId", "is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.indexOf(product.ID) >= 0 {
		return nil
	}
	next := append(w.snapshotLocked(), product)
	return w.commit(ctx, next)
}

// Remove drops productID. Absent products are ignored.
func (w *Wishlist) Remove(ctx context.Context, productID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removeLocked(ctx, strings.TrimSpace(productID))
}

// Contains reports whether productID is saved.
func (w *Wishlist) Contains(productID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.indexOf(strings.TrimSpace(productID)) >= 0
}

// Items returns a copy of the saved products.
func (w *Wishlist) Items() []domain.Product {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Clear removes every saved product.
func (w *Wishlist) Clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commit(ctx, []domain.Product{})
}

// MoveToCart adds one unit of the saved product to cart and then removes it from the wishlist.
// The two writes are not atomic; a crash between them leaves the product in both stores.
func (w *Wishlist) MoveToCart(ctx context.Context, cart *Cart, productID, size, color string) error {
	productID = strings.TrimSpace(productID)
	w.mu.Lock()
	idx := w.indexOf(productID)
	if idx < 0 {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotInWishlist, productID)
	}
	product := w.items[idx]
	w.mu.Unlock()

	if err := cart.Add(ctx, product, 1, size, color); err != nil {
		return err
	}
	return w.Remove(ctx, productID)
}

func (w *Wishlist) removeLocked(ctx context.Context, productID string) error {
	idx := w.indexOf(productID)
	if idx < 0 {
		return nil
	}
	next := make([]domain.Product, 0, len(w.items)-1)
	next = append(next, w.items[:idx]...)
	next = append(next, w.items[idx+1:]...)
	return w.commit(ctx, next)
}

func (w *Wishlist) commit(ctx context.Context, next []domain.Product) error {
	if err := storage.SaveJSON(ctx, w.blobs, storage.BlobWishlist, next); err != nil {
		return err
	}
	w.items = next
	return nil
}

func (w *Wishlist) snapshotLocked() []domain.Product {
	out := make([]domain.Product, len(w.items))
	copy(out, w.items)
	return out
}

func (w *Wishlist) indexOf(productID string) int {
	for i, product := range w.items {
		if product.ID == productID {
			return i
		}
	}
	return -1
}
