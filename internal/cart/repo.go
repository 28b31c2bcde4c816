package cart

import (
	"context"
	"errors"
	"time"

	"github.com/MikeMC777/mia-shop/internal/db"
)

var (
	ErrNotFound = errors.New("cart item not found")
)

type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Line, error)
	GetByID(ctx context.Context, id string) (*Line, error)
	GetByUserAndProduct(ctx context.Context, userID, productID string) (*Line, error)
	Create(ctx context.Context, l *Line) error
	UpdateQuantity(ctx context.Context, id string, qty int) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

type PGRepo struct{ db db.Querier }

// NewPGRepo accepts a pool or a transaction.
func NewPGRepo(q db.Querier) *PGRepo { return &PGRepo{db: q} }

const selectLine = `SELECT id::text, user_id::text, product_id::text, quantity, created_at, updated_at FROM cart_items`

// ListByUser returns the lines in the order they were added.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.db.Query(ctx, selectLine+` WHERE user_id=$1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	return scanLine(r.db.QueryRow(ctx, selectLine+` WHERE id=$1`, id))
}

func (r *PGRepo) GetByUserAndProduct(ctx context.Context, userID, productID string) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if !db.ValidID(userID) || !db.ValidID(productID) {
		return nil, ErrNotFound
	}
	return scanLine(r.db.QueryRow(ctx, selectLine+` WHERE user_id=$1 AND product_id=$2`, userID, productID))
}

func (r *PGRepo) Create(ctx context.Context, l *Line) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NOW(),NOW())
		RETURNING created_at, updated_at
	`, l.ID, l.UserID, l.ProductID, l.Quantity).Scan(&l.CreatedAt, &l.UpdatedAt)
}

func (r *PGRepo) UpdateQuantity(ctx context.Context, id string, qty int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !db.ValidID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE cart_items SET quantity=$2, updated_at=NOW() WHERE id=$1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !db.ValidID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return err
}

func scanLine(row interface{ Scan(...any) error }) (*Line, error) {
	var l Line
	if err := row.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}
