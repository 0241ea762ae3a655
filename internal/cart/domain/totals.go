package domain

// CartTotals is the recomputed money snapshot persisted after every line
// mutation. All fields are integer cents.
type CartTotals struct {
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

// Adjustments are the order-level amounts decided by other services
// (tax calculation, shipping rates, promotions). The ledger treats them
// as given inputs.
type Adjustments struct {
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
}

// ComputeTotals derives the cart totals from the current line set and the
// stored adjustments. It is a pure function: calling it twice over the same
// inputs yields identical results, and an empty line set yields exact zeros.
func ComputeTotals(items []LineItem, adj Adjustments) CartTotals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.TotalPriceCents
	}
	return CartTotals{
		SubtotalCents: subtotal,
		TaxCents:      adj.TaxCents,
		ShippingCents: adj.ShippingCents,
		DiscountCents: adj.DiscountCents,
		TotalCents:    subtotal + adj.TaxCents + adj.ShippingCents - adj.DiscountCents,
	}
}
