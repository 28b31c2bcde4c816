// Package wishlist stores the products a user has bookmarked.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeMC777/mia-shop/internal/db"
	"github.com/MikeMC777/mia-shop/internal/product"
)

var (
	ErrNotFound     = errors.New("wishlist item not found")
	ErrAlreadyExist = errors.New("product already in wishlist")
)

type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ProductID string    `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is an entry joined with its product for display.
type Item struct {
	ID      string          `json:"id"`
	Product product.Product `json:"product"`
}

type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Entry, error)
	GetByID(ctx context.Context, id string) (*Entry, error)
	GetByUserAndProduct(ctx context.Context, userID, productID string) (*Entry, error)
	Create(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id string) error
}

type PGRepo struct{ db db.Querier }

func NewPGRepo(q db.Querier) *PGRepo { return &PGRepo{db: q} }

const selectEntry = `SELECT id::text, user_id::text, product_id::text, created_at FROM wishlist_items`

func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, selectEntry+` WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ProductID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if !db.ValidID(id) {
		return nil, ErrNotFound
	}
	return scanEntry(r.db.QueryRow(ctx, selectEntry+` WHERE id=$1`, id))
}

func (r *PGRepo) GetByUserAndProduct(ctx context.Context, userID, productID string) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if !db.ValidID(userID) || !db.ValidID(productID) {
		return nil, ErrNotFound
	}
	return scanEntry(r.db.QueryRow(ctx, selectEntry+` WHERE user_id=$1 AND product_id=$2`, userID, productID))
}

func (r *PGRepo) Create(ctx context.Context, e *Entry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO wishlist_items (id, user_id, product_id, created_at, updated_at)
		VALUES ($1,$2,$3,NOW(),NOW())
		RETURNING created_at
	`, e.ID, e.UserID, e.ProductID).Scan(&e.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrAlreadyExist
	}
	return err
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !db.ValidID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM wishlist_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntry(row interface{ Scan(...any) error }) (*Entry, error) {
	var e Entry
	if err := row.Scan(&e.ID, &e.UserID, &e.ProductID, &e.CreatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

type Service struct {
	repo     Repository
	products product.Repository
}

func NewService(repo Repository, products product.Repository) *Service {
	return &Service{repo: repo, products: products}
}

// List hides entries whose product is gone or inactive.
func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	out := make([]Item, 0, len(entries))
	for _, e := range entries {
		p, err := s.products.GetByID(ctx, e.ProductID)
		if errors.Is(err, product.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			continue
		}
		out = append(out, Item{ID: e.ID, Product: *p})
	}
	return out, nil
}

func (s *Service) Add(ctx context.Context, userID, productID string) (*Item, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, product.ErrNotFound
	}
	if _, err := s.repo.GetByUserAndProduct(ctx, userID, productID); err == nil {
		return nil, ErrAlreadyExist
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	e := &Entry{ID: uuid.NewString(), UserID: userID, ProductID: productID}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return &Item{ID: e.ID, Product: *p}, nil
}

// Remove deletes an entry owned by userID; other users' entries look absent.
func (s *Service) Remove(ctx context.Context, userID, id string) error {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e.UserID != userID {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Contains(ctx context.Context, userID, productID string) (bool, error) {
	_, err := s.repo.GetByUserAndProduct(ctx, userID, productID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
