package domain

const (
	// TaxRatePercent is the flat GST rate applied to the subtotal.
	TaxRatePercent = 18
	// FreeShippingThreshold is the subtotal above which standard shipping is free.
	FreeShippingThreshold int64 = 500
	// StandardShippingFee applies to standard shipping at or below the threshold.
	StandardShippingFee int64 = 50
	// ExpressShippingFee applies to every express order regardless of subtotal.
	ExpressShippingFee int64 = 99
)

// Bounds on priced values. Within them subtotal*TaxRatePercent cannot overflow int64.
const (
	MaxLineQuantity       = 10000
	MaxUnitPrice    int64 = 100_000_000
	MaxSubtotal     int64 = 1_000_000_000_000
)

// LineWithinLimits reports whether a single line can be priced.
func LineWithinLimits(unitPrice int64, quantity int) bool {
	return unitPrice >= 0 && unitPrice <= MaxUnitPrice && quantity > 0 && quantity <= MaxLineQuantity
}

// ComputeTotals derives tax, shipping and grand total from a subtotal and shipping method.
// Cart preview, checkout, payment and the order API all price through this function.
// The zero ShippingMethod is treated as standard. Subtotals are clamped to [0, MaxSubtotal].
func ComputeTotals(subtotal int64, method ShippingMethod) Totals {
	if subtotal < 0 {
		subtotal = 0
	}
	if subtotal > MaxSubtotal {
		subtotal = MaxSubtotal
	}
	tax := percentRoundHalfUp(subtotal, TaxRatePercent)
	shipping := ShippingCost(subtotal, method)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
	}
}

// ShippingCost returns the shipping fee for the subtotal and method.
func ShippingCost(subtotal int64, method ShippingMethod) int64 {
	if method == ShippingExpress {
		return ExpressShippingFee
	}
	if subtotal > FreeShippingThreshold {
		return 0
	}
	return StandardShippingFee
}

// TotalsFor prices a set of line items.
func TotalsFor(items []LineItem, method ShippingMethod) Totals {
	return ComputeTotals(SubtotalOf(items), method)
}

// percentRoundHalfUp computes amount*percent/100 rounded half up, for non-negative amounts.
func percentRoundHalfUp(amount int64, percent int64) int64 {
	return (amount*percent + 50) / 100
}
