// Package review stores product ratings. A user reviews a product at most
// once, and only while the product is on sale.
package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/internal/db"
	"github.com/MikeMC777/mia-shop/internal/product"
	"github.com/MikeMC777/mia-shop/internal/user"
)

const (
	MinRating = 1
	MaxRating = 5
)

var (
	ErrInvalidRating = errors.New("rating out of range")
	ErrAlreadyExist  = errors.New("review already exists")
)

type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest payload of POST /reviews.
// swagger:model CreateReviewRequest
type CreateRequest struct {
	ProductID string `json:"product_id" binding:"required" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Rating    int    `json:"rating" example:"5"`
	Title     string `json:"title" binding:"max=200" example:"Solid lamp"`
	Comment   string `json:"comment" binding:"max=2000"`
}

type Repository interface {
	// Create fails with ErrAlreadyExist when the user already reviewed
	// the product.
	Create(ctx context.Context, r *Review) error
}

type PGRepo struct{ db db.Querier }

func NewPGRepo(q db.Querier) *PGRepo { return &PGRepo{db: q} }

func (r *PGRepo) Create(ctx context.Context, rv *Review) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO reviews (id, user_id, product_id, rating, title, comment, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),NOW(),NOW())
		RETURNING created_at
	`, rv.ID, rv.UserID, rv.ProductID, rv.Rating, rv.Title, rv.Comment).Scan(&rv.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrAlreadyExist
	}
	return err
}

type Service struct {
	repo     Repository
	products product.Repository
	users    user.Repository
	log      *zap.Logger
}

func NewService(repo Repository, products product.Repository, users user.Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, products: products, users: users, log: log}
}

// Create records userID's review of an active product. Checks run in the
// order product, rating, duplicate.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Review, error) {
	if !db.ValidID(req.ProductID) {
		return nil, product.ErrNotFound
	}
	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, product.ErrNotFound
	}
	if req.Rating < MinRating || req.Rating > MaxRating {
		return nil, ErrInvalidRating
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	rv := &Review{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: p.ID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
		UserName:  displayName(u),
	}
	if err := s.repo.Create(ctx, rv); err != nil {
		return nil, err
	}
	s.log.Info("review.created",
		zap.String("user_id", userID),
		zap.String("product_id", p.ID),
		zap.Int("rating", rv.Rating),
	)
	return rv, nil
}

func displayName(u *user.User) string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}
