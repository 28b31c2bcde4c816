// Package apperr translates domain errors into HTTP status codes and the
// messages clients are allowed to see.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MikeMC777/mia-shop/internal/auth"
	"github.com/MikeMC777/mia-shop/internal/cart"
	"github.com/MikeMC777/mia-shop/internal/order"
	"github.com/MikeMC777/mia-shop/internal/payment"
	"github.com/MikeMC777/mia-shop/internal/product"
	"github.com/MikeMC777/mia-shop/internal/review"
	"github.com/MikeMC777/mia-shop/internal/user"
	"github.com/MikeMC777/mia-shop/internal/vnpay"
	"github.com/MikeMC777/mia-shop/internal/wishlist"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func BadRequest(message string) *Error { return New(http.StatusBadRequest, message, nil) }

// InternalMessage is the only text a 500 ever carries.
const InternalMessage = "internal error"

var table = []struct {
	target  error
	code    int
	message string
}{
	{order.ErrEmptyCart, http.StatusBadRequest, "Cart is empty"},
	{order.ErrNotFound, http.StatusNotFound, "Order not found"},
	{order.ErrBadStatus, http.StatusBadRequest, "Invalid order status"},
	{order.ErrBadPayment, http.StatusBadRequest, "Invalid payment status"},
	{order.ErrForbidden, http.StatusForbidden, "Not allowed to change this order"},
	{cart.ErrNotFound, http.StatusNotFound, "Cart item not found"},
	{cart.ErrInsufficientStock, http.StatusBadRequest, "Insufficient stock"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "Quantity must be positive"},
	{product.ErrNotFound, http.StatusNotFound, "Product not found"},
	{wishlist.ErrNotFound, http.StatusNotFound, "Wishlist item not found"},
	{wishlist.ErrAlreadyExist, http.StatusBadRequest, "Product already in wishlist"},
	{product.ErrCategoryExists, http.StatusBadRequest, "Category already exists"},
	{review.ErrInvalidRating, http.StatusBadRequest, "Rating must be between 1 and 5"},
	{review.ErrAlreadyExist, http.StatusBadRequest, "Review already exists for this product"},
	{user.ErrAlreadyExist, http.StatusBadRequest, "Email already registered"},
	{user.ErrInvalidCredentials, http.StatusUnauthorized, "Incorrect email or password"},
	{user.ErrInactive, http.StatusForbidden, "User account is inactive"},
	{user.ErrNotFound, http.StatusUnauthorized, "User not found"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	{auth.ErrWrongType, http.StatusUnauthorized, "Invalid token type"},
	{payment.ErrAlreadyPaid, http.StatusBadRequest, "Order already paid"},
	{vnpay.ErrInvalidAmount, http.StatusBadRequest, "Payment amount must be positive"},
	{vnpay.ErrMissingReference, http.StatusBadRequest, "Order reference is required"},
}

// From maps err to an *Error. Unknown errors become a 500 whose message
// never includes the cause.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var stockErr *order.InsufficientStockError
	if errors.As(err, &stockErr) {
		return New(http.StatusBadRequest, "Insufficient stock for product "+stockErr.ProductName, err)
	}
	for _, m := range table {
		if errors.Is(err, m.target) {
			return New(m.code, m.message, err)
		}
	}
	return New(http.StatusInternalServerError, InternalMessage, err)
}
