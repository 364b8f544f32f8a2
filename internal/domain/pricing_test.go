package domain

import "testing"

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		subtotal int64
		method   ShippingMethod
		want     Totals
	}{
		{"standard above threshold ships free", 600, ShippingStandard, Totals{Subtotal: 600, Tax: 108, Shipping: 0, Total: 708}},
		{"standard below threshold pays fee", 400, ShippingStandard, Totals{Subtotal: 400, Tax: 72, Shipping: 50, Total: 522}},
		{"express ignores threshold", 400, ShippingExpress, Totals{Subtotal: 400, Tax: 72, Shipping: 99, Total: 571}},
		{"express above threshold", 600, ShippingExpress, Totals{Subtotal: 600, Tax: 108, Shipping: 99, Total: 807}},
		{"threshold is exclusive", 500, ShippingStandard, Totals{Subtotal: 500, Tax: 90, Shipping: 50, Total: 640}},
		{"zero method behaves as standard", 501, "", Totals{Subtotal: 501, Tax: 90, Shipping: 0, Total: 591}},
		{"half rounds up", 25, ShippingStandard, Totals{Subtotal: 25, Tax: 5, Shipping: 50, Total: 80}},
		{"below half rounds down", 2, ShippingStandard, Totals{Subtotal: 2, Tax: 0, Shipping: 50, Total: 52}},
		{"empty cart", 0, ShippingStandard, Totals{Subtotal: 0, Tax: 0, Shipping: 50, Total: 50}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTotals(tc.subtotal, tc.method)
			if got != tc.want {
				t.Fatalf("ComputeTotals(%d, %q) = %+v, want %+v", tc.subtotal, tc.method, got, tc.want)
			}
			if again := ComputeTotals(tc.subtotal, tc.method); again != got {
				t.Fatalf("expected deterministic result, got %+v then %+v", got, again)
			}
		})
	}
}

func TestTotalsForItems(t *testing.T) {
	items := []LineItem{
		{ProductID: "p1", UnitPrice: 250, Quantity: 2},
		{ProductID: "p2", UnitPrice: 100, Quantity: 1},
	}
	got := TotalsFor(items, ShippingStandard)
	want := Totals{Subtotal: 600, Tax: 108, Shipping: 0, Total: 708}
	if got != want {
		t.Fatalf("TotalsFor = %+v, want %+v", got, want)
	}
	if QuantityOf(items) != 3 {
		t.Fatalf("expected quantity 3, got %d", QuantityOf(items))
	}
}

func TestSubtotalSaturatesInsteadOfOverflowing(t *testing.T) {
	items := []LineItem{
		{ProductID: "p1", UnitPrice: 1 << 40, Quantity: 1 << 30},
		{ProductID: "p2", UnitPrice: 100, Quantity: 1},
	}
	if got := SubtotalOf(items); got != MaxSubtotal {
		t.Fatalf("expected saturated subtotal %d, got %d", MaxSubtotal, got)
	}
	got := TotalsFor(items, ShippingExpress)
	if got.Tax <= 0 || got.Total != got.Subtotal+got.Tax+got.Shipping {
		t.Fatalf("unexpected totals at the limit %+v", got)
	}
	if !LineWithinLimits(MaxUnitPrice, MaxLineQuantity) || LineWithinLimits(MaxUnitPrice+1, 1) || LineWithinLimits(1, 0) {
		t.Fatal("unexpected line limit result")
	}
}
