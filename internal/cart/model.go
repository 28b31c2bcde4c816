package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mia-shop/internal/product"
)

// Line is one (product, quantity) pairing of a user's in-progress cart.
type Line struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	ID       string          `json:"id"`
	Product  product.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// View is the priced cart returned to the client. Lines whose product is
// missing or inactive are left out.
type View struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// AddItemRequest payload of POST /cart/items.
// swagger:model AddItemRequest
type AddItemRequest struct {
	ProductID string `json:"product_id" binding:"required" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity"   binding:"required,min=1" example:"2"`
}

// UpdateItemRequest payload of PATCH /cart/items/:id.
// swagger:model UpdateItemRequest
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1" example:"3"`
}
