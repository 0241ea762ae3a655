package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/marketfront/cart-service/internal/cart/domain"
)

// Service is the pricing ledger engine. It validates mutation requests,
// resolves product snapshots, and drives the repository so that every
// committed mutation leaves the cart's totals equal to
// subtotal + tax + shipping - discount over the current line set.
type Service struct {
	repo    CartRepository
	catalog ProductCatalog
}

func NewService(repo CartRepository, catalog ProductCatalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

func (s *Service) CreateCart(ctx context.Context, customerID string) (domain.Cart, error) {
	if customerID == "" {
		return domain.Cart{}, &ValidationError{Field: "customerId", Reason: "required"}
	}
	return s.repo.CreateCart(ctx, domain.NewCart(uuid.NewString(), customerID))
}

func (s *Service) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	if cartID == "" {
		return domain.Cart{}, &ValidationError{Field: "cartId", Reason: "required"}
	}
	return s.repo.GetCart(ctx, cartID)
}

// AddOrUpdateLine sets the line for (cartID, productID) to the given
// absolute quantity and unit price, refreshing the product snapshot. A
// repeated call for the same product overwrites the existing line instead
// of adding a second one.
func (s *Service) AddOrUpdateLine(ctx context.Context, cartID, productID string, quantity int, unitPriceCents int64) (domain.LineItem, domain.CartTotals, error) {
	if cartID == "" {
		return domain.LineItem{}, domain.CartTotals{}, &ValidationError{Field: "cartId", Reason: "required"}
	}
	if productID == "" {
		return domain.LineItem{}, domain.CartTotals{}, &ValidationError{Field: "productId", Reason: "required"}
	}
	if quantity <= 0 {
		return domain.LineItem{}, domain.CartTotals{}, &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if unitPriceCents < 0 {
		return domain.LineItem{}, domain.CartTotals{}, &ValidationError{Field: "unitPrice", Reason: "must not be negative"}
	}

	if _, err := s.repo.GetCart(ctx, cartID); err != nil {
		return domain.LineItem{}, domain.CartTotals{}, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.LineItem{}, domain.CartTotals{}, err
	}
	if product == nil {
		return domain.LineItem{}, domain.CartTotals{}, ErrProductNotFound
	}

	item := domain.NewLineItem(uuid.NewString(), cartID, *product, quantity, unitPriceCents)
	if existing, err := s.repo.GetLineItem(ctx, cartID, productID); err != nil {
		return domain.LineItem{}, domain.CartTotals{}, err
	} else if existing != nil {
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
	}

	return s.repo.UpsertLineItem(ctx, item)
}

// RemoveLine deletes a line and recomputes the cart. Removing the last line
// drives subtotal and total back to exact zeros plus adjustments.
func (s *Service) RemoveLine(ctx context.Context, cartID, lineID string) (domain.CartTotals, error) {
	if cartID == "" {
		return domain.CartTotals{}, &ValidationError{Field: "cartId", Reason: "required"}
	}
	if lineID == "" {
		return domain.CartTotals{}, &ValidationError{Field: "lineId", Reason: "required"}
	}
	return s.repo.DeleteLineItem(ctx, cartID, lineID)
}

// SetAdjustments records the order-level tax, shipping and discount amounts
// decided by other services and recomputes the total.
func (s *Service) SetAdjustments(ctx context.Context, cartID string, adj domain.Adjustments) (domain.CartTotals, error) {
	if cartID == "" {
		return domain.CartTotals{}, &ValidationError{Field: "cartId", Reason: "required"}
	}
	if adj.TaxCents < 0 {
		return domain.CartTotals{}, &ValidationError{Field: "taxAmount", Reason: "must not be negative"}
	}
	if adj.ShippingCents < 0 {
		return domain.CartTotals{}, &ValidationError{Field: "shippingAmount", Reason: "must not be negative"}
	}
	if adj.DiscountCents < 0 {
		return domain.CartTotals{}, &ValidationError{Field: "discountAmount", Reason: "must not be negative"}
	}
	return s.repo.SetAdjustments(ctx, cartID, adj)
}

// RecomputeTotals re-derives and persists the cart's totals from the current
// line set and stored adjustments. It is idempotent: with no intervening
// mutation, a second call writes and returns identical values.
func (s *Service) RecomputeTotals(ctx context.Context, cartID string) (domain.CartTotals, error) {
	if cartID == "" {
		return domain.CartTotals{}, &ValidationError{Field: "cartId", Reason: "required"}
	}
	cart, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return domain.CartTotals{}, err
	}
	items, err := s.repo.GetLineItems(ctx, cartID)
	if err != nil {
		return domain.CartTotals{}, err
	}
	totals := domain.ComputeTotals(items, domain.Adjustments{
		TaxCents:      cart.TaxCents,
		ShippingCents: cart.ShippingCents,
		DiscountCents: cart.DiscountCents,
	})
	if err := s.repo.UpdateCartTotals(ctx, cartID, totals); err != nil {
		return domain.CartTotals{}, err
	}
	return totals, nil
}
