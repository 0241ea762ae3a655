package application

import (
	"context"

	"github.com/marketfront/cart-service/internal/cart/domain"
)

// ProductReader loads products from the shared relational store. A nil
// product with a nil error means the product does not exist.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type ProductCache interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	Set(ctx context.Context, p *domain.Product) error
}
