package storefront

import (
	"context"
	"strings"
	"sync"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/storage"
)

// Cart is the line item store. Every mutation is written through to the "cart" blob before the
// in-memory state is replaced, so a failed write leaves the cart as it was.
type Cart struct {
	mu    sync.Mutex
	blobs storage.Store
	items []domain.LineItem
}

func loadCart(ctx context.Context, blobs storage.Store) (*Cart, error) {
	var stored []domain.LineItem
	if _, err := storage.LoadJSON(ctx, blobs, storage.BlobCart, &stored); err != nil {
		return nil, err
	}
	items := make([]domain.LineItem, 0, len(stored))
	for _, item := range stored {
		if item.Quantity <= 0 || strings.TrimSpace(item.ProductID) == "" {
			continue
		}
		items = append(items, item)
	}
	return &Cart{blobs: blobs, items: items}, nil
}

// Add merges quantity into the line matching (product, size, colour) or appends a new line.
func (c *Cart) Add(ctx context.Context, product domain.Product, quantity int, size, color string) error {
	if quantity <= 0 {
		return invalid("quantity", "must be a positive integer, got %d", quantity)
	}
	if strings.TrimSpace(product.ID) == "" {
		return invalid("productId", "is required")
	}
	if product.Price < 0 || product.Price > domain.MaxUnitPrice {
		return invalid("price", "must be between 0 and %d", domain.MaxUnitPrice)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := domain.NewLineKey(product.ID, size, color)
	next := domain.CloneLineItems(c.items)
	if idx := indexOf(next, key); idx >= 0 {
		if quantity > domain.MaxLineQuantity-next[idx].Quantity {
			return invalid("quantity", "line quantity cannot exceed %d", domain.MaxLineQuantity)
		}
		next[idx].Quantity += quantity
	} else {
		if quantity > domain.MaxLineQuantity {
			return invalid("quantity", "line quantity cannot exceed %d", domain.MaxLineQuantity)
		}
		next = append(next, domain.LineItem{
			ProductID: key.ProductID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			Size:      key.Size,
			Color:     key.Color,
			Image:     product.Image,
		})
	}
	if domain.SubtotalOf(next) >= domain.MaxSubtotal {
		return invalid("quantity", "cart value cannot reach %d", domain.MaxSubtotal)
	}
	return c.commit(ctx, next)
}

// Remove deletes the matching line. Removing an absent line is a no-op.
func (c *Cart) Remove(ctx context.Context, productID, size, color string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(ctx, domain.NewLineKey(productID, size, color))
}

// SetQuantity replaces the quantity of the matching line; quantity <= 0 removes it.
// Setting the quantity of an absent line does nothing.
func (c *Cart) SetQuantity(ctx context.Context, productID, size, color string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := domain.NewLineKey(productID, size, color)
	if quantity <= 0 {
		return c.removeLocked(ctx, key)
	}
	if quantity > domain.MaxLineQuantity {
		return invalid("quantity", "line quantity cannot exceed %d", domain.MaxLineQuantity)
	}
	idx := indexOf(c.items, key)
	if idx < 0 || c.items[idx].Quantity == quantity {
		return nil
	}
	next := domain.CloneLineItems(c.items)
	next[idx].Quantity = quantity
	if domain.SubtotalOf(next) >= domain.MaxSubtotal {
		return invalid("quantity", "cart value cannot reach %d", domain.MaxSubtotal)
	}
	return c.commit(ctx, next)
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, []domain.LineItem{})
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []domain.LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneLineItems(c.items)
}

// Len is the number of distinct lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// TotalItemCount is the sum of quantities, used for the badge count.
func (c *Cart) TotalItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.QuantityOf(c.items)
}

// TotalValue is the subtotal of the cart.
func (c *Cart) TotalValue() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.SubtotalOf(c.items)
}

func (c *Cart) removeLocked(ctx context.Context, key domain.LineKey) error {
	idx := indexOf(c.items, key)
	if idx < 0 {
		return nil
	}
	next := make([]domain.LineItem, 0, len(c.items)-1)
	next = append(next, c.items[:idx]...)
	next = append(next, c.items[idx+1:]...)
	return c.commit(ctx, next)
}

func (c *Cart) commit(ctx context.Context, next []domain.LineItem) error {
	if err := storage.SaveJSON(ctx, c.blobs, storage.BlobCart, next); err != nil {
		return err
	}
	c.items = next
	return nil
}

func indexOf(items []domain.LineItem, key domain.LineKey) int {
	for i, item := range items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}
