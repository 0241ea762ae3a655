package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketfront/cart-service/internal/cart/application"
	"github.com/marketfront/cart-service/internal/cart/domain"
	"github.com/marketfront/cart-service/pkg/tracing"
)

// Repository persists carts and line items. Every mutation commits the line
// write, the recomputed totals and the outbox event in a single transaction,
// with the cart row locked so concurrent writers against the same cart are
// serialized and no totals write can be based on a stale line snapshot.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) CreateCart(ctx context.Context, c domain.Cart) (domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Cart{}, storeErr("begin tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO carts
			(id, customer_id, status, subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents, created_at, updated_at)
		VALUES ($1,$2,$3,0,0,0,0,0,$4,$5)`,
		c.ID, c.CustomerID, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return domain.Cart{}, storeErr("insert cart", err)
	}

	payload, err := json.Marshal(domain.CartCreated{CartID: c.ID, CustomerID: c.CustomerID})
	if err != nil {
		return domain.Cart{}, storeErr("marshal event", err)
	}
	if err := insertOutbox(ctx, tx, c.ID, "CartCreated", payload); err != nil {
		return domain.Cart{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Cart{}, storeErr("commit", err)
	}
	return c, nil
}

func (r *Repository) GetCart(ctx context.Context, id string) (domain.Cart, error) {
	var c domain.Cart
	err := r.pool.QueryRow(ctx, `SELECT id, customer_id, status, subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents, created_at, updated_at
		FROM carts WHERE id=$1`, id).
		Scan(&c.ID, &c.CustomerID, &c.Status, &c.SubtotalCents, &c.TaxCents, &c.ShippingCents, &c.DiscountCents, &c.TotalCents, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{}, application.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, storeErr("select cart", err)
	}

	items, err := r.GetLineItems(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	c.Items = items
	return c, nil
}

func (r *Repository) GetLineItems(ctx context.Context, cartID string) ([]domain.LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, cart_id, product_id, quantity, unit_price_cents, total_price_cents, product_name, product_sku, store_id, created_at, updated_at
		FROM cart_items WHERE cart_id=$1`, cartID)
	if err != nil {
		return nil, storeErr("select line items", err)
	}
	defer rows.Close()
	return scanLineItems(rows)
}

func (r *Repository) GetLineItem(ctx context.Context, cartID, productID string) (*domain.LineItem, error) {
	var it domain.LineItem
	err := r.pool.QueryRow(ctx, `SELECT id, cart_id, product_id, quantity, unit_price_cents, total_price_cents, product_name, product_sku, store_id, created_at, updated_at
		FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents, &it.ProductName, &it.ProductSKU, &it.StoreID, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select line item", err)
	}
	return &it, nil
}

func (r *Repository) UpsertLineItem(ctx context.Context, item domain.LineItem) (domain.LineItem, domain.CartTotals, error) {
	var totals domain.CartTotals

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.LineItem{}, totals, storeErr("begin tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	adj, err := lockCart(ctx, tx, item.CartID)
	if err != nil {
		return domain.LineItem{}, totals, err
	}

	err = tx.QueryRow(ctx, `INSERT INTO cart_items
			(id, cart_id, product_id, quantity, unit_price_cents, total_price_cents, product_name, product_sku, store_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET
			quantity=EXCLUDED.quantity,
			unit_price_cents=EXCLUDED.unit_price_cents,
			total_price_cents=EXCLUDED.total_price_cents,
			product_name=EXCLUDED.product_name,
			product_sku=EXCLUDED.product_sku,
			store_id=EXCLUDED.store_id,
			updated_at=EXCLUDED.updated_at
		RETURNING id, created_at`,
		item.ID, item.CartID, item.ProductID, item.Quantity, item.UnitPriceCents, item.TotalPriceCents,
		item.ProductName, item.ProductSKU, item.StoreID, item.CreatedAt, item.UpdatedAt).
		Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return domain.LineItem{}, totals, storeErr("upsert line item", err)
	}

	totals, err = recomputeLocked(ctx, tx, item.CartID, adj)
	if err != nil {
		return domain.LineItem{}, totals, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.LineItem{}, totals, storeErr("commit", err)
	}
	return item, totals, nil
}

func (r *Repository) DeleteLineItem(ctx context.Context, cartID, lineID string) (domain.CartTotals, error) {
	var totals domain.CartTotals

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return totals, storeErr("begin tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	adj, err := lockCart(ctx, tx, cartID)
	if err != nil {
		return totals, err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND cart_id=$2`, lineID, cartID)
	if err != nil {
		return totals, storeErr("delete line item", err)
	}
	if ct.RowsAffected() == 0 {
		return totals, application.ErrLineNotFound
	}

	totals, err = recomputeLocked(ctx, tx, cartID, adj)
	if err != nil {
		return totals, err
	}

	if err := tx.Commit(ctx); err != nil {
		return totals, storeErr("commit", err)
	}
	return totals, nil
}

func (r *Repository) SetAdjustments(ctx context.Context, cartID string, adj domain.Adjustments) (domain.CartTotals, error) {
	var totals domain.CartTotals

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return totals, storeErr("begin tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := lockCart(ctx, tx, cartID); err != nil {
		return totals, err
	}

	_, err = tx.Exec(ctx, `UPDATE carts SET tax_cents=$2, shipping_cents=$3, discount_cents=$4, updated_at=now() WHERE id=$1`,
		cartID, adj.TaxCents, adj.ShippingCents, adj.DiscountCents)
	if err != nil {
		return totals, storeErr("update adjustments", err)
	}

	totals, err = recomputeLocked(ctx, tx, cartID, adj)
	if err != nil {
		return totals, err
	}

	if err := tx.Commit(ctx); err != nil {
		return totals, storeErr("commit", err)
	}
	return totals, nil
}

func (r *Repository) UpdateCartTotals(ctx context.Context, cartID string, totals domain.CartTotals) error {
	ct, err := r.pool.Exec(ctx, `UPDATE carts SET subtotal_cents=$2, tax_cents=$3, shipping_cents=$4, discount_cents=$5, total_cents=$6, updated_at=now()
		WHERE id=$1`,
		cartID, totals.SubtotalCents, totals.TaxCents, totals.ShippingCents, totals.DiscountCents, totals.TotalCents)
	if err != nil {
		return storeErr("update cart totals", err)
	}
	if ct.RowsAffected() == 0 {
		return application.ErrCartNotFound
	}
	return nil
}

// lockCart takes the per-cart write lock and returns the stored adjustments.
func lockCart(ctx context.Context, tx pgx.Tx, cartID string) (domain.Adjustments, error) {
	var adj domain.Adjustments
	err := tx.QueryRow(ctx, `SELECT tax_cents, shipping_cents, discount_cents FROM carts WHERE id=$1 FOR UPDATE`, cartID).
		Scan(&adj.TaxCents, &adj.ShippingCents, &adj.DiscountCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return adj, application.ErrCartNotFound
	}
	if err != nil {
		return adj, storeErr("lock cart", err)
	}
	return adj, nil
}

// recomputeLocked derives the totals from the post-mutation line set, writes
// them to the cart row and queues a CartRepriced event, all on the open
// transaction. The cart row must already be locked.
func recomputeLocked(ctx context.Context, tx pgx.Tx, cartID string, adj domain.Adjustments) (domain.CartTotals, error) {
	rows, err := tx.Query(ctx, `SELECT id, cart_id, product_id, quantity, unit_price_cents, total_price_cents, product_name, product_sku, store_id, created_at, updated_at
		FROM cart_items WHERE cart_id=$1`, cartID)
	if err != nil {
		return domain.CartTotals{}, storeErr("select line items", err)
	}
	items, err := scanLineItems(rows)
	rows.Close()
	if err != nil {
		return domain.CartTotals{}, err
	}

	totals := domain.ComputeTotals(items, adj)

	_, err = tx.Exec(ctx, `UPDATE carts SET subtotal_cents=$2, total_cents=$3, updated_at=now() WHERE id=$1`,
		cartID, totals.SubtotalCents, totals.TotalCents)
	if err != nil {
		return totals, storeErr("update cart totals", err)
	}

	payload, err := json.Marshal(domain.CartRepriced{
		CartID:        cartID,
		SubtotalCents: totals.SubtotalCents,
		TaxCents:      totals.TaxCents,
		ShippingCents: totals.ShippingCents,
		DiscountCents: totals.DiscountCents,
		TotalCents:    totals.TotalCents,
	})
	if err != nil {
		return totals, storeErr("marshal event", err)
	}
	if err := insertOutbox(ctx, tx, cartID, "CartRepriced", payload); err != nil {
		return totals, err
	}
	return totals, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, cartID, eventType string, payload []byte) error {
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status) VALUES ('cart',$1,$2,$3,$4,'pending')`,
		cartID, eventType, payload, tracing.Traceparent(ctx))
	if err != nil {
		return storeErr("insert outbox", err)
	}
	return nil
}

func scanLineItems(rows pgx.Rows) ([]domain.LineItem, error) {
	var items []domain.LineItem
	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents,
			&it.ProductName, &it.ProductSKU, &it.StoreID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, storeErr("scan line item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate line items", err)
	}
	return items, nil
}

func storeErr(op string, err error) error {
	return &application.StoreError{Op: op, Err: err}
}
