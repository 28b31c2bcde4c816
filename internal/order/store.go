package order

import (
	"context"

	"github.com/MikeMC777/mia-shop/internal/cart"
	"github.com/MikeMC777/mia-shop/internal/product"
)

// Store persists orders. Creation goes through InTx so that the order, the
// stock decrements and the emptied cart commit or roll back together.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error)
	// UpdateStatus leaves a field untouched when its value is empty.
	UpdateStatus(ctx context.Context, id string, status Status, paymentStatus PaymentStatus) error
	// MarkPaid reports whether the order moved to paid. An order that was
	// already paid returns false and no error.
	MarkPaid(ctx context.Context, number string) (bool, error)
}

// Tx is the unit of work used by order assembly.
type Tx interface {
	CartLines(ctx context.Context, userID string) ([]cart.Line, error)
	// LockProducts locks the rows of ids in ascending id order and returns
	// them keyed by id. Missing products are absent from the map.
	LockProducts(ctx context.Context, ids []string) (map[string]*product.Product, error)
	SaveStock(ctx context.Context, productID string, qty int) error
	InsertOrder(ctx context.Context, o *Order) error
	DeleteCartLines(ctx context.Context, userID string) error
}
