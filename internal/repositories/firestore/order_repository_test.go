package firestore

import (
	"testing"
	"time"

	"github.com/hanko-field/storefront/internal/domain"
)

func TestOrderDocumentRoundTrip(t *testing.T) {
	paid := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	order := domain.Order{
		ID:     "ord_1",
		UserID: "u1",
		Items: []domain.LineItem{
			{ProductID: "p1", Name: "Tee", UnitPrice: 200, Quantity: 2, Size: "M", Color: "Black"},
		},
		ShippingAddress: domain.Address{ID: "adr_1", FirstName: "Asha", Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"},
		ShippingMethod:  domain.ShippingStandard,
		PaymentMethod:   domain.PaymentCard,
		Payment: domain.PaymentDetails{
			Method:        domain.PaymentCard,
			TransactionID: "TXN1",
			Status:        domain.PaymentStatusCompleted,
			Amount:        522,
			CardLast4:     "4242",
			PaidAt:        &paid,
		},
		Totals:    domain.Totals{Subtotal: 400, Tax: 72, Shipping: 50, Total: 522},
		Status:    domain.OrderStatusConfirmed,
		CreatedAt: paid,
		UpdatedAt: paid,
	}

	got := newOrderDocument(order).toDomain()
	if got.ID != order.ID || got.Totals != order.Totals || got.Status != order.Status {
		t.Fatalf("unexpected order %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0] != order.Items[0] {
		t.Fatalf("unexpected items %+v", got.Items)
	}
	if got.ShippingAddress.City != "Pune" || got.Payment.CardLast4 != "4242" || !got.Payment.PaidAt.Equal(paid) {
		t.Fatalf("unexpected nested fields %+v", got)
	}
}
