package storefront

import (
	"strconv"
	"strings"
	"time"

	"github.com/hanko-field/storefront/internal/domain"
)

// CardDetails is the card instrument entered at payment. Only the last four digits and the
// holder name leave the client.
type CardDetails struct {
	Number     string
	HolderName string
	Expiry     string
	CVV        string
}

// PaymentSelection is the payment method chosen for a frozen checkout.
type PaymentSelection struct {
	Method domain.PaymentMethod
	Card   *CardDetails
}

// Validate checks the method and, for cards, the instrument fields.
func (p PaymentSelection) Validate() error {
	if _, err := domain.ParsePaymentMethod(string(p.Method)); err != nil {
		return invalid("paymentMethod", "%s", err)
	}
	if p.Method != domain.PaymentCard {
		return nil
	}
	if p.Card == nil {
		return invalid("card", "card details are required")
	}
	number := cardDigits(p.Card.Number)
	if len(number) != 16 || !allDigits(number) {
		return invalid("card.number", "must be 16 digits")
	}
	if strings.TrimSpace(p.Card.HolderName) == "" {
		return invalid("card.holderName", "is required")
	}
	if strings.TrimSpace(p.Card.Expiry) == "" {
		return invalid("card.expiry", "is required")
	}
	if cvv := strings.TrimSpace(p.Card.CVV); len(cvv) != 3 || !allDigits(cvv) {
		return invalid("card.cvv", "must be 3 digits")
	}
	return nil
}

// details synthesises the payment record sent with the order. Cash on delivery stays pending;
// every other method is reported completed without a gateway round trip.
func (p PaymentSelection) details(now time.Time, amount int64) domain.PaymentDetails {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	out := domain.PaymentDetails{Method: p.Method, Amount: amount}
	if p.Method == domain.PaymentCOD {
		out.TransactionID = "COD" + millis
		out.Status = domain.PaymentStatusPending
		return out
	}
	out.TransactionID = "TXN" + millis
	out.Status = domain.PaymentStatusCompleted
	paidAt := now.UTC()
	out.PaidAt = &paidAt
	if p.Method == domain.PaymentCard && p.Card != nil {
		number := cardDigits(p.Card.Number)
		out.CardLast4 = number[len(number)-4:]
		out.CardName = strings.TrimSpace(p.Card.HolderName)
	}
	return out
}

func cardDigits(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(number))
}

func allDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}
