package order

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/internal/logx"
)

// MaxNumberAttempts bounds how many order numbers are tried before giving up.
const MaxNumberAttempts = 3

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// CartInvalidator drops cached cart views once an order consumed the cart.
type CartInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

type Service struct {
	store     Store
	carts     CartInvalidator
	log       *zap.Logger
	newNumber func() string
}

func NewService(store Store, carts CartInvalidator, log *zap.Logger) *Service {
	return &Service{store: store, carts: carts, log: log, newNumber: GenerateNumber}
}

// WithNumberGenerator replaces GenerateNumber, for tests that need collisions.
func (s *Service) WithNumberGenerator(gen func() string) *Service {
	s.newNumber = gen
	return s
}

// CreateFromCart converts the user's cart into an order. A collision on the
// generated order number restarts the whole transaction with a new number.
// The second return value is the number of cart lines that were skipped.
func (s *Service) CreateFromCart(ctx context.Context, userID string, req CreateOrderRequest) (*Order, int, error) {
	log := logx.FromContext(ctx, s.log)
	for attempt := 1; attempt <= MaxNumberAttempts; attempt++ {
		var (
			o       *Order
			skipped int
		)
		err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			var err error
			o, skipped, err = s.assemble(ctx, tx, userID, req)
			return err
		})
		if errors.Is(err, ErrOrderNumberTaken) {
			log.Warn("order.number_collision", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, skipped, err
		}

		if s.carts != nil {
			s.carts.Invalidate(ctx, userID)
		}
		log.Info("order.created",
			zap.String("order_id", o.ID),
			zap.String("order_number", o.Number),
			zap.String("user_id", userID),
			zap.Int("items", len(o.Items)),
			zap.Int("skipped_lines", skipped),
			zap.String("total", o.Total.StringFixed(2)),
		)
		return o, skipped, nil
	}
	return nil, 0, fmt.Errorf("create order after %d attempts: %w", MaxNumberAttempts, ErrOrderNumberTaken)
}

// List returns one page of the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string, page, pageSize int) (*ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	items, total, err := s.store.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if items == nil {
		items = []Order{}
	}
	return &ListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Get returns the order only if it belongs to userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*Order, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) GetByNumber(ctx context.Context, userID, number string) (*Order, error) {
	o, err := s.store.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// Update changes status and/or payment status. Nothing else on an order is
// mutable. An admin may change any order; an owner may only cancel their
// own order while it is still pending.
func (s *Service) Update(ctx context.Context, userID string, admin bool, id string, req UpdateOrderRequest) (*Order, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, ErrBadStatus
	}
	if req.PaymentStatus != "" && !req.PaymentStatus.Valid() {
		return nil, ErrBadPayment
	}

	var (
		o   *Order
		err error
	)
	if admin {
		o, err = s.store.GetByID(ctx, id)
	} else {
		o, err = s.Get(ctx, userID, id)
	}
	if err != nil {
		return nil, err
	}
	if !admin && !ownerMayApply(o, req) {
		logx.FromContext(ctx, s.log).Warn("order.update_forbidden",
			zap.String("user_id", userID),
			zap.String("order_id", id),
			zap.String("status", string(req.Status)),
			zap.String("payment_status", string(req.PaymentStatus)),
		)
		return nil, ErrForbidden
	}

	if err := s.store.UpdateStatus(ctx, id, req.Status, req.PaymentStatus); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return s.store.GetByID(ctx, id)
}

func ownerMayApply(o *Order, req UpdateOrderRequest) bool {
	return req.PaymentStatus == "" &&
		req.Status == StatusCancelled &&
		o.Status == StatusPending
}
