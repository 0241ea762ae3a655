package domain

import "time"

type CartStatus string

const (
	// StatusPending marks a cart that is still being edited. Other
	// statuses exist past checkout and are owned by other services.
	StatusPending CartStatus = "pending"
)

// Cart is a draft order header. All money fields are integer cents.
type Cart struct {
	ID            string
	CustomerID    string
	Status        CartStatus
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
	Items         []LineItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LineItem is one product position in a cart. At most one line exists per
// (cart, product) pair; a repeated add overwrites the existing row.
type LineItem struct {
	ID              string
	CartID          string
	ProductID       string
	Quantity        int
	UnitPriceCents  int64
	TotalPriceCents int64
	// Product display data as of the last write to this line.
	ProductName string
	ProductSKU  string
	StoreID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewCart(id, customerID string) Cart {
	now := time.Now().UTC()
	return Cart{
		ID:         id,
		CustomerID: customerID,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func NewLineItem(id, cartID string, p Product, quantity int, unitPriceCents int64) LineItem {
	now := time.Now().UTC()
	return LineItem{
		ID:              id,
		CartID:          cartID,
		ProductID:       p.ID,
		Quantity:        quantity,
		UnitPriceCents:  unitPriceCents,
		TotalPriceCents: int64(quantity) * unitPriceCents,
		ProductName:     p.Name,
		ProductSKU:      p.SKU,
		StoreID:         p.StoreID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Product is the read-only view of a catalog product. The cart subsystem
// never writes products; it only snapshots these fields onto line items.
type Product struct {
	ID      string
	Name    string
	SKU     string
	StoreID string
}
