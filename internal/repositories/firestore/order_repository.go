package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/hanko-field/storefront/internal/domain"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders in the top-level orders collection.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   pfirestore.Collection[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
	}, nil
}

// Insert creates the order document.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.orders.Create(ctx, order.ID, newOrderDocument(order))
}

// FindByID loads one order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.toDomain(), nil
}

// ListByUser returns the user's orders newest first. Requires the (userId, createdAt desc) index.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

// Mutate applies fn to the order inside a transaction.
func (r *OrderRepository) Mutate(ctx context.Context, orderID string, fn repositories.OrderMutation) (domain.Order, error) {
	ref, err := r.orders.Doc(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	var saved domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("orders.mutate", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}
		order := doc.toDomain()
		if err := fn(&order); err != nil {
			return err
		}
		if err := tx.Set(ref, newOrderDocument(order)); err != nil {
			return err
		}
		saved = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return saved, nil
}

type orderDocument struct {
	ID              string          `firestore:"id"`
	UserID          string          `firestore:"userId"`
	Items           []lineDocument  `firestore:"items"`
	ShippingAddress addressDocument `firestore:"shippingAddress"`
	ShippingMethod  string          `firestore:"shippingMethod"`
	PaymentMethod   string          `firestore:"paymentMethod"`
	Payment         paymentDocument `firestore:"paymentDetails"`
	Subtotal        int64           `firestore:"subtotal"`
	Tax             int64           `firestore:"tax"`
	Shipping        int64           `firestore:"shipping"`
	Total           int64           `firestore:"total"`
	Status          string          `firestore:"orderStatus"`
	CancelReason    string          `firestore:"cancelReason,omitempty"`
	CreatedAt       time.Time       `firestore:"createdAt"`
	UpdatedAt       time.Time       `firestore:"updatedAt"`
}

type lineDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	Price     int64  `firestore:"price"`
	Quantity  int    `firestore:"quantity"`
	Size      string `firestore:"size,omitempty"`
	Color     string `firestore:"color,omitempty"`
	Image     string `firestore:"image,omitempty"`
}

type paymentDocument struct {
	Method        string     `firestore:"method,omitempty"`
	TransactionID string     `firestore:"transactionId,omitempty"`
	Status        string     `firestore:"status"`
	Amount        int64      `firestore:"amount,omitempty"`
	CardLast4     string     `firestore:"cardLast4,omitempty"`
	CardName      string     `firestore:"cardName,omitempty"`
	PaidAt        *time.Time `firestore:"paymentDate,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]lineDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, lineDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.UnitPrice,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			Image:     item.Image,
		})
	}
	return orderDocument{
		ID:              order.ID,
		UserID:          order.UserID,
		Items:           items,
		ShippingAddress: newAddressDocument(order.ShippingAddress, ""),
		ShippingMethod:  string(order.ShippingMethod),
		PaymentMethod:   string(order.PaymentMethod),
		Payment: paymentDocument{
			Method:        string(order.Payment.Method),
			TransactionID: order.Payment.TransactionID,
			Status:        string(order.Payment.Status),
			Amount:        order.Payment.Amount,
			CardLast4:     order.Payment.CardLast4,
			CardName:      order.Payment.CardName,
			PaidAt:        order.Payment.PaidAt,
		},
		Subtotal:     order.Totals.Subtotal,
		Tax:          order.Totals.Tax,
		Shipping:     order.Totals.Shipping,
		Total:        order.Totals.Total,
		Status:       string(order.Status),
		CancelReason: order.CancelReason,
		CreatedAt:    order.CreatedAt.UTC(),
		UpdatedAt:    order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain() domain.Order {
	items := make([]domain.LineItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			Image:     item.Image,
		})
	}
	return domain.Order{
		ID:              d.ID,
		UserID:          d.UserID,
		Items:           items,
		ShippingAddress: d.ShippingAddress.toDomain(),
		ShippingMethod:  domain.ShippingMethod(d.ShippingMethod),
		PaymentMethod:   domain.PaymentMethod(d.PaymentMethod),
		Payment: domain.PaymentDetails{
			Method:        domain.PaymentMethod(d.Payment.Method),
			TransactionID: d.Payment.TransactionID,
			Status:        domain.PaymentStatus(d.Payment.Status),
			Amount:        d.Payment.Amount,
			CardLast4:     d.Payment.CardLast4,
			CardName:      d.Payment.CardName,
			PaidAt:        d.Payment.PaidAt,
		},
		Totals:       domain.Totals{Subtotal: d.Subtotal, Tax: d.Tax, Shipping: d.Shipping, Total: d.Total},
		Status:       domain.OrderStatus(d.Status),
		CancelReason: d.CancelReason,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
