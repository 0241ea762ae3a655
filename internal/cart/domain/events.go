package domain

type CartCreated struct {
	CartID     string `json:"cart_id"`
	CustomerID string `json:"customer_id"`
}

// CartRepriced is emitted after every mutation that changed the cart's
// totals, carrying the full recomputed snapshot.
type CartRepriced struct {
	CartID        string `json:"cart_id"`
	SubtotalCents int64  `json:"subtotal_cents"`
	TaxCents      int64  `json:"tax_cents"`
	ShippingCents int64  `json:"shipping_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
}
