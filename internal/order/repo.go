package order

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mia-shop/internal/cart"
	"github.com/MikeMC777/mia-shop/internal/db"
	"github.com/MikeMC777/mia-shop/internal/product"
)

type PGStore struct{ db *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{db: pool} }

func (s *PGStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{
			tx:       tx,
			products: product.NewPGRepo(tx),
			carts:    cart.NewPGRepo(tx),
		})
	})
}

type pgTx struct {
	tx       pgx.Tx
	products *product.PGRepo
	carts    *cart.PGRepo
}

func (t *pgTx) CartLines(ctx context.Context, userID string) ([]cart.Line, error) {
	return t.carts.ListByUser(ctx, userID)
}

func (t *pgTx) LockProducts(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	return t.products.LockMany(ctx, ids)
}

func (t *pgTx) SaveStock(ctx context.Context, productID string, qty int) error {
	return t.products.SaveStock(ctx, productID, qty)
}

func (t *pgTx) DeleteCartLines(ctx context.Context, userID string) error {
	return t.carts.DeleteByUser(ctx, userID)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
    INSERT INTO orders (id, user_id, order_number, status, payment_status,
                        shipping_name, shipping_phone, shipping_address, shipping_city, shipping_postal_code,
                        subtotal, shipping_fee, total, notes, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())
    RETURNING created_at, updated_at
  `, o.ID, o.UserID, o.Number, string(o.Status), string(o.PaymentStatus),
		o.Shipping.Name, o.Shipping.Phone, o.Shipping.Address, o.Shipping.City, o.Shipping.PostalCode,
		o.Subtotal.StringFixed(2), o.ShippingFee.StringFixed(2), o.Total.StringFixed(2), o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrOrderNumberTaken
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
      INSERT INTO order_items (id, order_id, product_id, product_name, product_sku, quantity, unit_price, total_price)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, it.ID, o.ID, it.ProductID, it.ProductName, it.ProductSKU, it.Quantity,
			it.UnitPrice.StringFixed(2), it.TotalPrice.StringFixed(2)); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

const selectOrder = `
    SELECT id::text, user_id::text, order_number, status, payment_status,
           shipping_name, shipping_phone, shipping_address, shipping_city, shipping_postal_code,
           subtotal::text, shipping_fee::text, total::text, notes, created_at, updated_at
    FROM orders`

func (s *PGStore) GetByID(ctx context.Context, id string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	return s.getOne(ctx, selectOrder+` WHERE id=$1`, id)
}

func (s *PGStore) GetByNumber(ctx context.Context, number string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.getOne(ctx, selectOrder+` WHERE order_number=$1`, number)
}

func (s *PGStore) getOne(ctx context.Context, query string, arg string) (*Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	byOrder, err := s.items(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = byOrder[o.ID]
	return o, nil
}

func (s *PGStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx, selectOrder+`
    WHERE user_id=$1
    ORDER BY created_at DESC, id LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out []Order
		ids []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return out, total, nil
	}

	byOrder, err := s.items(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Items = byOrder[out[i].ID]
	}
	return out, total, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id string, status Status, paymentStatus PaymentStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if !db.ValidID(id) {
		return ErrNotFound
	}

	tag, err := s.db.Exec(ctx, `
    UPDATE orders
    SET status = COALESCE(NULLIF($2, ''), status),
        payment_status = COALESCE(NULLIF($3, ''), payment_status),
        updated_at = NOW()
    WHERE id = $1
  `, id, string(status), string(paymentStatus))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) MarkPaid(ctx context.Context, number string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := s.db.Exec(ctx, `
    UPDATE orders
    SET payment_status = $2, updated_at = NOW()
    WHERE order_number = $1 AND payment_status <> $2
  `, number, string(PaymentPaid))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number=$1)`, number).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *PGStore) items(ctx context.Context, orderIDs []string) (map[string][]Item, error) {
	rows, err := s.db.Query(ctx, `
    SELECT id::text, order_id::text, product_id::text, product_name, product_sku, quantity,
           unit_price::text, total_price::text
    FROM order_items
    WHERE order_id = ANY($1::uuid[])
    ORDER BY order_id, product_name, id
  `, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]Item, len(orderIDs))
	for rows.Next() {
		var (
			it          Item
			unit, total string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductSKU,
			&it.Quantity, &unit, &total); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, fmt.Errorf("order item %s unit price: %w", it.ID, err)
		}
		if it.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("order item %s total price: %w", it.ID, err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	var (
		o                     Order
		subtotal, fee, total  string
		status, paymentStatus string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Number, &status, &paymentStatus,
		&o.Shipping.Name, &o.Shipping.Phone, &o.Shipping.Address, &o.Shipping.City, &o.Shipping.PostalCode,
		&subtotal, &fee, &total, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(paymentStatus)

	var err error
	if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("order %s subtotal: %w", o.ID, err)
	}
	if o.ShippingFee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("order %s shipping fee: %w", o.ID, err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	return &o, nil
}
