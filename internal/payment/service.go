// Package payment connects orders to the VNPay gateway: it builds the signed
// redirect for an order and settles the order when the gateway calls back.
package payment

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/internal/logx"
	"github.com/MikeMC777/mia-shop/internal/order"
	"github.com/MikeMC777/mia-shop/internal/vnpay"
)

var ErrAlreadyPaid = errors.New("order already paid")

// CreateRequest payload of POST /payments/create.
// swagger:model PaymentCreateRequest
type CreateRequest struct {
	OrderNumber string `json:"order_number" binding:"required" example:"ORD-1A2B3C4D"`
	ReturnURL   string `json:"return_url"                      example:"https://shop.example.com/payment/callback"`
}

// swagger:model PaymentCreateResponse
type CreateResponse struct {
	PaymentURL string `json:"payment_url"`
}

// CallbackResponse is returned to the browser after the gateway redirect.
// swagger:model PaymentCallbackResponse
type CallbackResponse struct {
	Success     bool   `json:"success"`
	OrderNumber string `json:"order_number,omitempty"`
	Message     string `json:"message"`
}

// Orders is the part of order.Store the payment flow needs.
type Orders interface {
	GetByNumber(ctx context.Context, number string) (*order.Order, error)
	MarkPaid(ctx context.Context, number string) (bool, error)
}

type Service struct {
	orders  Orders
	gateway *vnpay.Client
	log     *zap.Logger
}

func NewService(orders Orders, gateway *vnpay.Client, log *zap.Logger) *Service {
	return &Service{orders: orders, gateway: gateway, log: log}
}

// CreatePaymentURL signs a redirect for the full order total. Orders of
// other users are reported as not found.
func (s *Service) CreatePaymentURL(ctx context.Context, userID string, req CreateRequest, clientIP string) (*CreateResponse, error) {
	o, err := s.orders.GetByNumber(ctx, req.OrderNumber)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrNotFound
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}

	u, err := s.gateway.BuildPaymentURL(vnpay.PaymentRequest{
		Amount:      o.Total,
		OrderRef:    o.Number,
		Description: "Payment for order " + o.Number,
		ReturnURL:   req.ReturnURL,
		ClientIP:    clientIP,
	})
	if err != nil {
		return nil, err
	}
	logx.FromContext(ctx, s.log).Info("payment.url_created",
		zap.String("order_number", o.Number), zap.String("amount", o.Total.StringFixed(2)))
	return &CreateResponse{PaymentURL: u}, nil
}

// HandleCallback verifies the gateway parameters and marks the order paid at
// most once. Only storage failures are returned as errors; every rejected
// callback is reported in the response.
func (s *Service) HandleCallback(ctx context.Context, params map[string]string, remoteIP string) (*CallbackResponse, error) {
	log := logx.FromContext(ctx, s.log)
	res := s.gateway.VerifyCallback(params)

	switch res.Status {
	case vnpay.SignatureInvalid:
		log.Warn("payment.signature_invalid",
			zap.String("remote_ip", remoteIP), zap.String("txn_ref", res.OrderRef))
		return &CallbackResponse{Success: false, Message: res.Message}, nil
	case vnpay.Malformed:
		log.Warn("payment.callback_malformed", zap.String("remote_ip", remoteIP))
		return &CallbackResponse{Success: false, Message: res.Message}, nil
	case vnpay.VerifiedFailure:
		log.Info("payment.failed",
			zap.String("order_number", res.OrderRef), zap.String("response_code", res.ResponseCode))
		return &CallbackResponse{Success: false, OrderNumber: res.OrderRef, Message: res.Message}, nil
	}

	o, err := s.orders.GetByNumber(ctx, res.OrderRef)
	if errors.Is(err, order.ErrNotFound) {
		return &CallbackResponse{Success: false, Message: "Order not found"}, nil
	}
	if err != nil {
		return nil, err
	}
	if !o.Total.Equal(res.Amount) {
		log.Warn("payment.amount_mismatch",
			zap.String("order_number", o.Number),
			zap.String("expected", o.Total.StringFixed(2)),
			zap.String("received", res.Amount.StringFixed(2)))
		return &CallbackResponse{Success: false, OrderNumber: o.Number, Message: "Amount mismatch"}, nil
	}

	changed, err := s.orders.MarkPaid(ctx, o.Number)
	if err != nil {
		return nil, err
	}
	if changed {
		log.Info("payment.marked_paid",
			zap.String("order_number", o.Number), zap.String("transaction_id", res.TransactionID))
	} else {
		log.Info("payment.already_paid", zap.String("order_number", o.Number))
	}
	return &CallbackResponse{Success: true, OrderNumber: o.Number, Message: "Payment successful"}, nil
}
