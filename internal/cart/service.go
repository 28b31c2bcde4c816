package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/internal/logx"
	"github.com/MikeMC777/mia-shop/internal/product"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

type Service struct {
	repo     Repository
	products product.Repository
	cache    Cache
	log      *zap.Logger
}

func NewService(repo Repository, products product.Repository, cache Cache, log *zap.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Service{repo: repo, products: products, cache: cache, log: log}
}

// View prices the user's cart with each product's effective price. Only
// the lines come from the cache; products are read fresh every time.
func (s *Service) View(ctx context.Context, userID string) (*View, error) {
	lines, err := s.lines(ctx, userID)
	if err != nil {
		return nil, err
	}

	v := &View{Items: make([]Item, 0, len(lines)), TotalPrice: decimal.Zero}
	for _, l := range lines {
		p, err := s.products.GetByID(ctx, l.ProductID)
		if errors.Is(err, product.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", l.ProductID, err)
		}
		if !p.IsActive {
			continue
		}
		v.Items = append(v.Items, Item{ID: l.ID, Product: *p, Quantity: l.Quantity})
		v.TotalItems += l.Quantity
		v.TotalPrice = v.TotalPrice.Add(p.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return v, nil
}

func (s *Service) lines(ctx context.Context, userID string) ([]Line, error) {
	if lines, err := s.cache.Get(ctx, userID); err == nil {
		return lines, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		logx.FromContext(ctx, s.log).Warn("cart cache read failed", zap.Error(err))
	}

	lines, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	if err := s.cache.Set(ctx, userID, lines); err != nil {
		logx.FromContext(ctx, s.log).Warn("cart cache write failed", zap.Error(err))
	}
	return lines, nil
}

// Add puts qty units of a product in the cart, merging with an existing
// line for the same product.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	p, err := s.activeProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.StockQuantity < qty {
		return nil, ErrInsufficientStock
	}

	existing, err := s.repo.GetByUserAndProduct(ctx, userID, productID)
	switch {
	case err == nil:
		newQty := existing.Quantity + qty
		if p.StockQuantity < newQty {
			return nil, ErrInsufficientStock
		}
		if err := s.repo.UpdateQuantity(ctx, existing.ID, newQty); err != nil {
			return nil, fmt.Errorf("update cart item: %w", err)
		}
		s.invalidate(ctx, userID)
		return &Item{ID: existing.ID, Product: *p, Quantity: newQty}, nil
	case errors.Is(err, ErrNotFound):
		l := &Line{ID: uuid.NewString(), UserID: userID, ProductID: productID, Quantity: qty}
		if err := s.repo.Create(ctx, l); err != nil {
			return nil, fmt.Errorf("create cart item: %w", err)
		}
		s.invalidate(ctx, userID)
		return &Item{ID: l.ID, Product: *p, Quantity: qty}, nil
	default:
		return nil, fmt.Errorf("lookup cart item: %w", err)
	}
}

func (s *Service) Update(ctx context.Context, userID, itemID string, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	l, err := s.owned(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, l.ProductID)
	if err != nil {
		return nil, err
	}
	if p.StockQuantity < qty {
		return nil, ErrInsufficientStock
	}
	if err := s.repo.UpdateQuantity(ctx, l.ID, qty); err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	s.invalidate(ctx, userID)
	return &Item{ID: l.ID, Product: *p, Quantity: qty}, nil
}

func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	l, err := s.owned(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, l.ID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Invalidate drops the cached view, e.g. after an order consumed the cart.
func (s *Service) Invalidate(ctx context.Context, userID string) { s.invalidate(ctx, userID) }

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, userID); err != nil {
		logx.FromContext(ctx, s.log).Warn("cart cache invalidation failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) owned(ctx context.Context, userID, itemID string) (*Line, error) {
	l, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, ErrNotFound
	}
	return l, nil
}

func (s *Service) activeProduct(ctx context.Context, id string) (*product.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, product.ErrNotFound
	}
	return p, nil
}
