// Package product provides the repository interface and PostgreSQL implementation for managing products.
package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mia-shop/internal/db"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrCategoryExists = errors.New("category slug already exists")
)

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	CreateCategory(ctx context.Context, c *Category) error
	ListCategories(ctx context.Context) ([]Category, error)
}

type PGRepo struct{ db db.Querier }

// NewPGRepo accepts a pool or a transaction.
func NewPGRepo(q db.Querier) *PGRepo { return &PGRepo{db: q} }

const selectColumns = `
	SELECT id::text, name, slug, COALESCE(description, ''), price::text, discounted_price::text,
	       stock_quantity, sku, category_id::text, is_active, created_at, updated_at
	FROM products`

func (r *PGRepo) Create(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var discounted *string
	if p.DiscountedPrice != nil {
		s := p.DiscountedPrice.StringFixed(2)
		discounted = &s
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, name, slug, description, price, discounted_price, stock_quantity, sku, category_id, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
	`, p.ID, p.Name, p.Slug, p.Description, p.Price.StringFixed(2), discounted, p.StockQuantity, p.SKU, p.CategoryID, p.IsActive)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	return scanOne(r.db.QueryRow(ctx, selectColumns+` WHERE id=$1`, id))
}

func (r *PGRepo) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return scanOne(r.db.QueryRow(ctx, selectColumns+` WHERE slug=$1`, slug))
}

func (r *PGRepo) CreateCategory(ctx context.Context, c *Category) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO categories (id, name, slug, description, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,NOW(),NOW())
		RETURNING created_at
	`, c.ID, c.Name, c.Slug, c.Description, c.IsActive).Scan(&c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrCategoryExists
	}
	return err
}

// ListCategories returns the active categories ordered by name.
func (r *PGRepo) ListCategories(ctx context.Context) ([]Category, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id::text, name, slug, COALESCE(description, ''), is_active, created_at
		FROM categories
		WHERE is_active
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LockMany reads the products and locks their rows until the surrounding
// transaction ends. Rows are locked in id order so that two transactions
// over overlapping sets queue instead of deadlocking. Only meaningful when
// the repo wraps a pgx.Tx.
func (r *PGRepo) LockMany(ctx context.Context, ids []string) (map[string]*Product, error) {
	rows, err := r.db.Query(ctx, selectColumns+` WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Product, len(ids))
	for rows.Next() {
		p, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *PGRepo) SaveStock(ctx context.Context, id string, qty int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE id = $1
	`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner) (*Product, error) {
	var (
		p          Product
		price      string
		discounted *string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &price, &discounted,
		&p.StockQuantity, &p.SKU, &p.CategoryID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	if discounted != nil {
		d, err := decimal.NewFromString(*discounted)
		if err != nil {
			return nil, fmt.Errorf("product %s discounted price: %w", p.ID, err)
		}
		p.DiscountedPrice = &d
	}
	return &p, nil
}
