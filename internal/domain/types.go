package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownShippingMethod is returned when a shipping method string is not recognised.
	ErrUnknownShippingMethod = errors.New("domain: unknown shipping method")
	// ErrUnknownPaymentMethod is returned when a payment method string is not recognised.
	ErrUnknownPaymentMethod = errors.New("domain: unknown payment method")
)

// ShippingMethod enumerates the delivery options offered at checkout.
type ShippingMethod string

const (
	// ShippingStandard is free above the threshold, otherwise a flat fee.
	ShippingStandard ShippingMethod = "standard"
	// ShippingExpress always charges the express fee.
	ShippingExpress ShippingMethod = "express"
)

// ParseShippingMethod normalises user input into a ShippingMethod.
func ParseShippingMethod(value string) (ShippingMethod, error) {
	switch ShippingMethod(strings.ToLower(strings.TrimSpace(value))) {
	case ShippingStandard:
		return ShippingStandard, nil
	case ShippingExpress:
		return ShippingExpress, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownShippingMethod, value)
}

// PaymentMethod enumerates the payment options accepted by the storefront.
type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "card"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetBanking PaymentMethod = "netbanking"
	PaymentWallet     PaymentMethod = "wallet"
	// PaymentCOD (cash on delivery) is the only method whose payment stays pending after checkout.
	PaymentCOD PaymentMethod = "cod"
)

// ParsePaymentMethod normalises user input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	switch method {
	case PaymentCard, PaymentUPI, PaymentNetBanking, PaymentWallet, PaymentCOD:
		return method, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, value)
}

// PaymentStatus tracks whether funds were collected for an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusCancelled},
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid reports whether s is one of the known statuses.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// LineKey identifies a cart line. Two lines are the same only when product, size and colour all match.
type LineKey struct {
	ProductID string
	Size      string
	Color     string
}

// NewLineKey trims the components so whitespace differences do not split a line.
func NewLineKey(productID, size, color string) LineKey {
	return LineKey{
		ProductID: strings.TrimSpace(productID),
		Size:      strings.TrimSpace(size),
		Color:     strings.TrimSpace(color),
	}
}

// LineItem is one (product, size, colour, quantity) entry in a cart or order.
type LineItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Image     string `json:"image,omitempty"`
}

// Key returns the identity key of the line.
func (l LineItem) Key() LineKey {
	return NewLineKey(l.ProductID, l.Size, l.Color)
}

// LineTotal is unit price times quantity.
func (l LineItem) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// SubtotalOf sums the line totals of items, ignoring empty lines and saturating at MaxSubtotal.
func SubtotalOf(items []LineItem) int64 {
	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 || item.UnitPrice <= 0 {
			continue
		}
		if item.UnitPrice > (MaxSubtotal-subtotal)/int64(item.Quantity) {
			return MaxSubtotal
		}
		subtotal += item.LineTotal()
	}
	return subtotal
}

// QuantityOf sums the quantities of items.
func QuantityOf(items []LineItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// CloneLineItems returns a copy of items that does not share backing storage.
func CloneLineItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return []LineItem{}
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// Product is the catalogue entry a cart or wishlist line refers to.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Image    string `json:"image,omitempty"`
	Category string `json:"category,omitempty"`
}

// Address is a delivery address owned by a user.
type Address struct {
	ID         string    `json:"id,omitempty"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Line1      string    `json:"addressLine1"`
	Line2      string    `json:"addressLine2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state,omitempty"`
	PostalCode string    `json:"zipCode"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"isDefault,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// FullName joins first and last name.
func (a Address) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Totals is the monetary breakdown shown at cart preview, checkout, payment and on the order.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

// PaymentDetails records how an order was paid.
type PaymentDetails struct {
	Method        PaymentMethod `json:"method,omitempty"`
	TransactionID string        `json:"transactionId,omitempty"`
	Status        PaymentStatus `json:"status"`
	Amount        int64         `json:"amount,omitempty"`
	CardLast4     string        `json:"cardLast4,omitempty"`
	CardName      string        `json:"cardName,omitempty"`
	PaidAt        *time.Time    `json:"paymentDate,omitempty"`
}

// Order is the server-owned record created at checkout. Only Status and Payment change afterwards.
type Order struct {
	ID              string
	UserID          string
	Items           []LineItem
	ShippingAddress Address
	ShippingMethod  ShippingMethod
	PaymentMethod   PaymentMethod
	Payment         PaymentDetails
	Totals          Totals
	Status          OrderStatus
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Summary projects the order onto the list view shape.
func (o Order) Summary() OrderSummary {
	return OrderSummary{
		ID:        o.ID,
		Items:     CloneLineItems(o.Items),
		Total:     o.Totals.Total,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
	}
}

// OrderSummary is the list view of an order.
type OrderSummary struct {
	ID        string      `json:"id"`
	Items     []LineItem  `json:"items"`
	Total     int64       `json:"total"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// UserProfile is the last-known profile of the signed-in user.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
