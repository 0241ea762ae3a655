package application

import (
	"context"

	"github.com/marketfront/cart-service/internal/cart/domain"
)

// CartRepository is the store-facing side of the ledger. Mutating calls
// commit the line write, the recomputed totals and the outbox event in one
// transaction; see the postgres implementation.
type CartRepository interface {
	CreateCart(ctx context.Context, c domain.Cart) (domain.Cart, error)
	GetCart(ctx context.Context, id string) (domain.Cart, error)
	GetLineItems(ctx context.Context, cartID string) ([]domain.LineItem, error)
	GetLineItem(ctx context.Context, cartID, productID string) (*domain.LineItem, error)
	UpsertLineItem(ctx context.Context, item domain.LineItem) (domain.LineItem, domain.CartTotals, error)
	DeleteLineItem(ctx context.Context, cartID, lineID string) (domain.CartTotals, error)
	SetAdjustments(ctx context.Context, cartID string, adj domain.Adjustments) (domain.CartTotals, error)
	UpdateCartTotals(ctx context.Context, cartID string, totals domain.CartTotals) error
}

// ProductCatalog resolves product display data for line snapshots. A nil
// product with a nil error means the product does not exist.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}
