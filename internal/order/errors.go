package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("order not found")
	ErrEmptyCart  = errors.New("cart is empty")
	ErrBadStatus  = errors.New("invalid order status")
	ErrBadPayment = errors.New("invalid payment status")
	ErrForbidden  = errors.New("order change not allowed")
	// ErrOrderNumberTaken is returned by Tx.InsertOrder when the generated
	// number already exists.
	ErrOrderNumberTaken = errors.New("order number already exists")
)

type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductName)
}
