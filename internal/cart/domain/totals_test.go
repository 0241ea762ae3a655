package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	items := []LineItem{
		{TotalPriceCents: 1999},
		{TotalPriceCents: 1500},
	}
	adj := Adjustments{TaxCents: 200, ShippingCents: 1000, DiscountCents: 100}

	got := ComputeTotals(items, adj)

	assert.Equal(t, int64(3499), got.SubtotalCents)
	assert.Equal(t, int64(4599), got.TotalCents)
	assert.Equal(t, got.TotalCents, got.SubtotalCents+got.TaxCents+got.ShippingCents-got.DiscountCents)
}

func TestComputeTotalsEmpty(t *testing.T) {
	got := ComputeTotals(nil, Adjustments{})

	assert.Equal(t, int64(0), got.SubtotalCents)
	assert.Equal(t, int64(0), got.TotalCents)
}

// Adjustments apply even when no lines remain; removing the last line must
// not zero out tax or shipping decided elsewhere.
func TestComputeTotalsEmptyWithAdjustments(t *testing.T) {
	got := ComputeTotals(nil, Adjustments{TaxCents: 200, ShippingCents: 1000, DiscountCents: 100})

	assert.Equal(t, int64(0), got.SubtotalCents)
	assert.Equal(t, int64(1100), got.TotalCents)
}

func TestComputeTotalsIdempotent(t *testing.T) {
	items := []LineItem{{TotalPriceCents: 1999}, {TotalPriceCents: 1000}}
	adj := Adjustments{TaxCents: 55}

	first := ComputeTotals(items, adj)
	second := ComputeTotals(items, adj)

	assert.Equal(t, first, second)
}

func TestNewLineItemTotalPrice(t *testing.T) {
	p := Product{ID: "p1", Name: "Widget", SKU: "W-1", StoreID: "s1"}
	it := NewLineItem("l1", "c1", p, 3, 500)

	assert.Equal(t, int64(1500), it.TotalPriceCents)
	assert.Equal(t, "Widget", it.ProductName)
	assert.Equal(t, "W-1", it.ProductSKU)
	assert.Equal(t, "s1", it.StoreID)
}
