package order

// CreateOrderRequest payload of order creation. Lines come from the
// caller's cart, not from the request.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	ShippingInfo ShippingInfo `json:"shipping_info" binding:"required"`
	Notes        *string      `json:"notes"         example:"Leave at the front desk"`
}

// UpdateOrderRequest payload of PATCH /orders/:id. Empty fields are left unchanged.
// swagger:model UpdateOrderRequest
type UpdateOrderRequest struct {
	Status        Status        `json:"status"         example:"confirmed"`
	PaymentStatus PaymentStatus `json:"payment_status" example:"paid"`
}

// ListResponse is one page of a user's orders.
// swagger:model OrderListResponse
type ListResponse struct {
	Items      []Order `json:"items"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
}
