package application

import (
	"context"
	"sync"
	"testing"

	"github.com/marketfront/cart-service/internal/cart/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	m     sync.Mutex
	carts map[string]domain.Cart
	items map[string][]domain.LineItem
	err   error

	totalsWrites int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		carts: make(map[string]domain.Cart),
		items: make(map[string][]domain.LineItem),
	}
}

func (m *mockRepository) CreateCart(_ context.Context, c domain.Cart) (domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return domain.Cart{}, m.err
	}
	m.carts[c.ID] = c
	return c, nil
}

func (m *mockRepository) GetCart(_ context.Context, id string) (domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return domain.Cart{}, m.err
	}
	c, ok := m.carts[id]
	if !ok {
		return domain.Cart{}, ErrCartNotFound
	}
	c.Items = append([]domain.LineItem(nil), m.items[id]...)
	return c, nil
}

func (m *mockRepository) GetLineItems(_ context.Context, cartID string) ([]domain.LineItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.LineItem(nil), m.items[cartID]...), nil
}

func (m *mockRepository) GetLineItem(_ context.Context, cartID, productID string) (*domain.LineItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, it := range m.items[cartID] {
		if it.ProductID == productID {
			found := it
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockRepository) UpsertLineItem(_ context.Context, item domain.LineItem) (domain.LineItem, domain.CartTotals, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return domain.LineItem{}, domain.CartTotals{}, m.err
	}
	items := m.items[item.CartID]
	replaced := false
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}
	m.items[item.CartID] = items
	return item, m.recompute(item.CartID), nil
}

func (m *mockRepository) DeleteLineItem(_ context.Context, cartID, lineID string) (domain.CartTotals, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return domain.CartTotals{}, m.err
	}
	items := m.items[cartID]
	for i, it := range items {
		if it.ID == lineID {
			m.items[cartID] = append(items[:i], items[i+1:]...)
			break
		}
	}
	return m.recompute(cartID), nil
}

func (m *mockRepository) SetAdjustments(_ context.Context, cartID string, adj domain.Adjustments) (domain.CartTotals, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return domain.CartTotals{}, m.err
	}
	c, ok := m.carts[cartID]
	if !ok {
		return domain.CartTotals{}, ErrCartNotFound
	}
	c.TaxCents = adj.TaxCents
	c.ShippingCents = adj.ShippingCents
	c.DiscountCents = adj.DiscountCents
	m.carts[cartID] = c
	return m.recompute(cartID), nil
}

func (m *mockRepository) UpdateCartTotals(_ context.Context, cartID string, totals domain.CartTotals) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[cartID]
	if !ok {
		return ErrCartNotFound
	}
	c.SubtotalCents = totals.SubtotalCents
	c.TotalCents = totals.TotalCents
	m.carts[cartID] = c
	m.totalsWrites++
	return nil
}

// recompute mirrors what the postgres repository does inside the mutation
// transaction. Callers must hold the lock.
func (m *mockRepository) recompute(cartID string) domain.CartTotals {
	c := m.carts[cartID]
	totals := domain.ComputeTotals(m.items[cartID], domain.Adjustments{
		TaxCents:      c.TaxCents,
		ShippingCents: c.ShippingCents,
		DiscountCents: c.DiscountCents,
	})
	c.SubtotalCents = totals.SubtotalCents
	c.TotalCents = totals.TotalCents
	m.carts[cartID] = c
	m.totalsWrites++
	return totals
}

type mockCatalog struct {
	products map[string]domain.Product
	err      error
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func newTestService(t *testing.T) (*Service, *mockRepository, domain.Cart) {
	t.Helper()
	repo := newMockRepository()
	catalog := &mockCatalog{products: map[string]domain.Product{
		"p1": {ID: "p1", Name: "Widget", SKU: "W-1", StoreID: "s1"},
		"p2": {ID: "p2", Name: "Gadget", SKU: "G-2", StoreID: "s1"},
	}}
	svc := NewService(repo, catalog)
	cart, err := svc.CreateCart(context.Background(), "cust-1")
	require.NoError(t, err)
	return svc, repo, cart
}

func TestCreateCart(t *testing.T) {
	_, _, cart := newTestService(t)

	assert.NotEmpty(t, cart.ID)
	assert.Equal(t, "cust-1", cart.CustomerID)
	assert.Equal(t, domain.StatusPending, cart.Status)
	assert.Zero(t, cart.SubtotalCents)
	assert.Zero(t, cart.TotalCents)
}

func TestCreateCartRequiresCustomer(t *testing.T) {
	svc := NewService(newMockRepository(), &mockCatalog{})

	_, err := svc.CreateCart(context.Background(), "")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "customerId", verr.Field)
}

func TestAddLine(t *testing.T) {
	svc, _, cart := newTestService(t)

	item, totals, err := svc.AddOrUpdateLine(context.Background(), cart.ID, "p1", 2, 1999)

	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, int64(3998), item.TotalPriceCents)
	assert.Equal(t, "Widget", item.ProductName)
	assert.Equal(t, int64(3998), totals.SubtotalCents)
	assert.Equal(t, int64(3998), totals.TotalCents)
}

func TestAddLineTwiceUpdatesInsteadOfDuplicating(t *testing.T) {
	svc, repo, cart := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 1, 1999)
	require.NoError(t, err)
	second, totals, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 5, 1500)
	require.NoError(t, err)

	items, err := repo.GetLineItems(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, int64(1500), items[0].UnitPriceCents)
	assert.Equal(t, int64(7500), totals.SubtotalCents)
}

func TestAddLineQuantityIsAbsolute(t *testing.T) {
	svc, _, cart := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 3, 500)
	require.NoError(t, err)
	item, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 2, 500)
	require.NoError(t, err)

	// 2, not 5: the request sets the quantity rather than incrementing it.
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, int64(1000), item.TotalPriceCents)
}

func TestAddLineValidation(t *testing.T) {
	svc, repo, cart := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 4, 1000)
	require.NoError(t, err)
	before, err := repo.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	writes := repo.totalsWrites

	cases := []struct {
		name      string
		productID string
		quantity  int
		price     int64
		field     string
	}{
		{"zero quantity", "p1", 0, 1000, "quantity"},
		{"negative quantity", "p1", -1, 1000, "quantity"},
		{"negative price", "p1", 1, -500, "unitPrice"},
		{"missing product id", "", 1, 1000, "productId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.AddOrUpdateLine(ctx, cart.ID, tc.productID, tc.quantity, tc.price)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	// No write happened: lines and totals are untouched.
	after, err := repo.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, before.SubtotalCents, after.SubtotalCents)
	assert.Equal(t, before.TotalCents, after.TotalCents)
	assert.Len(t, after.Items, 1)
	assert.Equal(t, writes, repo.totalsWrites)
}

func TestAddLineUnknownProduct(t *testing.T) {
	svc, _, cart := newTestService(t)

	_, _, err := svc.AddOrUpdateLine(context.Background(), cart.ID, "nope", 1, 100)

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAddLineUnknownCart(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.AddOrUpdateLine(context.Background(), "missing", "p1", 1, 100)

	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestRemoveLine(t *testing.T) {
	svc, _, cart := newTestService(t)
	ctx := context.Background()

	item, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 1, 1999)
	require.NoError(t, err)
	_, _, err = svc.AddOrUpdateLine(ctx, cart.ID, "p2", 3, 500)
	require.NoError(t, err)

	totals, err := svc.RemoveLine(ctx, cart.ID, item.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(1500), totals.SubtotalCents)
	assert.Equal(t, int64(1500), totals.TotalCents)
}

func TestRemoveLastLineZeroesTotals(t *testing.T) {
	svc, _, cart := newTestService(t)
	ctx := context.Background()

	item, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 7, 1999)
	require.NoError(t, err)

	totals, err := svc.RemoveLine(ctx, cart.ID, item.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.SubtotalCents)
	assert.Equal(t, int64(0), totals.TotalCents)
}

func TestRemoveLineRequiresBothIDs(t *testing.T) {
	svc, _, cart := newTestService(t)
	ctx := context.Background()

	_, err := svc.RemoveLine(ctx, "", "line-1")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cartId", verr.Field)

	_, err = svc.RemoveLine(ctx, cart.ID, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "lineId", verr.Field)
}

func TestAddRemoveCycleRestoresTotals(t *testing.T) {
	svc, repo, cart := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 1, 1999)
	require.NoError(t, err)
	before, err := repo.GetCart(ctx, cart.ID)
	require.NoError(t, err)

	// Repeatedly adding and removing a fractional-price line must return
	// the cart to exactly its prior totals.
	for i := 0; i < 50; i++ {
		item, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p2", 1, domain.ToCents(0.07))
		require.NoError(t, err)
		_, err = svc.RemoveLine(ctx, cart.ID, item.ID)
		require.NoError(t, err)
	}

	after, err := repo.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, before.SubtotalCents, after.SubtotalCents)
	assert.Equal(t, before.TotalCents, after.TotalCents)
}

func TestSetAdjustments(t *testing.T) {
	svc, _, cart := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 1, 1999)
	require.NoError(t, err)
	_, _, err = svc.AddOrUpdateLine(ctx, cart.ID, "p2", 3, 500)
	require.NoError(t, err)

	totals, err := svc.SetAdjustments(ctx, cart.ID, domain.Adjustments{
		TaxCents:      200,
		ShippingCents: 1000,
		DiscountCents: 100,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2999), totals.SubtotalCents)
	assert.Equal(t, int64(4099), totals.TotalCents)
}

func TestSetAdjustmentsRejectsNegative(t *testing.T) {
	svc, _, cart := newTestService(t)

	_, err := svc.SetAdjustments(context.Background(), cart.ID, domain.Adjustments{DiscountCents: -1})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "discountAmount", verr.Field)
}

func TestUpdateLineQuantityScenario(t *testing.T) {
	svc, _, cart := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 1, domain.ToCents(19.99))
	require.NoError(t, err)
	_, _, err = svc.AddOrUpdateLine(ctx, cart.ID, "p2", 3, domain.ToCents(5.00))
	require.NoError(t, err)
	totals, err := svc.SetAdjustments(ctx, cart.ID, domain.Adjustments{
		TaxCents:      domain.ToCents(2),
		ShippingCents: domain.ToCents(10),
		DiscountCents: domain.ToCents(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 29.99, domain.FromCents(totals.SubtotalCents))
	assert.Equal(t, 40.99, domain.FromCents(totals.TotalCents))

	_, totals, err = svc.AddOrUpdateLine(ctx, cart.ID, "p2", 2, domain.ToCents(5.00))
	require.NoError(t, err)
	assert.Equal(t, 24.99, domain.FromCents(totals.SubtotalCents))
	assert.Equal(t, 35.99, domain.FromCents(totals.TotalCents))
}

func TestRecomputeTotalsIdempotent(t *testing.T) {
	svc, _, cart := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.AddOrUpdateLine(ctx, cart.ID, "p1", 2, 1999)
	require.NoError(t, err)

	first, err := svc.RecomputeTotals(ctx, cart.ID)
	require.NoError(t, err)
	second, err := svc.RecomputeTotals(ctx, cart.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(3998), first.SubtotalCents)
}

func TestStoreErrorPropagates(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockCatalog{products: map[string]domain.Product{"p1": {ID: "p1"}}})
	cart, err := svc.CreateCart(context.Background(), "cust-1")
	require.NoError(t, err)

	repo.err = &StoreError{Op: "upsert line", Err: assert.AnError}

	_, _, err = svc.AddOrUpdateLine(context.Background(), cart.ID, "p1", 1, 100)

	var serr *StoreError
	assert.ErrorAs(t, err, &serr)
}
