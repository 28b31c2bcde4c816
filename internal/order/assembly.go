package order

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/internal/cart"
	"github.com/MikeMC777/mia-shop/internal/logx"
	"github.com/MikeMC777/mia-shop/internal/product"
)

// productIDs returns the distinct product ids of lines, sorted.
func productIDs(lines []cart.Line) []string {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	sort.Strings(ids)
	return ids
}

type reservation struct {
	product *product.Product
	qty     int
}

// assemble turns the user's cart into an order inside tx. Every line is
// checked against locked stock before anything is written; a single short
// line aborts the whole order. It returns the number of cart lines skipped
// because their product is gone or inactive.
func (s *Service) assemble(ctx context.Context, tx Tx, userID string, req CreateOrderRequest) (*Order, int, error) {
	lines, err := tx.CartLines(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("read cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, 0, ErrEmptyCart
	}

	locked, err := tx.LockProducts(ctx, productIDs(lines))
	if err != nil {
		return nil, 0, fmt.Errorf("lock products: %w", err)
	}

	log := logx.FromContext(ctx, s.log)
	var (
		plan      []reservation
		remaining = map[string]int{}
		skipped   int
	)
	for _, l := range lines {
		p, ok := locked[l.ProductID]
		switch {
		case !ok:
			skipped++
			log.Warn("order.line_skipped", zap.String("product_id", l.ProductID), zap.String("reason", "not_found"))
			continue
		case !p.IsActive:
			skipped++
			log.Warn("order.line_skipped", zap.String("product_id", l.ProductID), zap.String("reason", "inactive"))
			continue
		}

		left, seen := remaining[p.ID]
		if !seen {
			left = p.StockQuantity
		}
		if left < l.Quantity {
			return nil, 0, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   l.Quantity,
				Available:   left,
			}
		}
		remaining[p.ID] = left - l.Quantity
		plan = append(plan, reservation{product: p, qty: l.Quantity})
	}
	if len(plan) == 0 {
		return nil, skipped, ErrEmptyCart
	}

	o := &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Number:        s.newNumber(),
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Shipping:      req.ShippingInfo,
		ShippingFee:   decimal.Zero,
		Notes:         req.Notes,
		Items:         make([]Item, 0, len(plan)),
	}
	subtotal := decimal.Zero
	for _, r := range plan {
		unit := r.product.EffectivePrice()
		lineTotal := unit.Mul(decimal.NewFromInt(int64(r.qty)))
		subtotal = subtotal.Add(lineTotal)
		o.Items = append(o.Items, Item{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			ProductID:   r.product.ID,
			ProductName: r.product.Name,
			ProductSKU:  r.product.SKU,
			Quantity:    r.qty,
			UnitPrice:   unit.Round(2),
			TotalPrice:  lineTotal.Round(2),
		})
	}
	o.Subtotal = subtotal.Round(2)
	o.Total = o.Subtotal.Add(o.ShippingFee)

	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, skipped, err
	}
	for _, r := range plan {
		left, ok := remaining[r.product.ID]
		if !ok {
			continue
		}
		if err := tx.SaveStock(ctx, r.product.ID, left); err != nil {
			return nil, skipped, fmt.Errorf("save stock %s: %w", r.product.ID, err)
		}
		delete(remaining, r.product.ID)
	}
	if err := tx.DeleteCartLines(ctx, userID); err != nil {
		return nil, skipped, fmt.Errorf("clear cart: %w", err)
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
		o.UpdatedAt = o.CreatedAt
	}
	return o, skipped, nil
}
