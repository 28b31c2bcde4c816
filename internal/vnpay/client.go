package vnpay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/mia-shop/internal/config"
)

const (
	Version      = "2.1.0"
	CommandPay   = "pay"
	CurrencyVND  = "VND"
	OrderType    = "other"
	LocaleVI     = "vi"
	CodeSuccess  = "00"
	createLayout = "20060102150405"
)

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrMissingReference = errors.New("order reference is required")
)

// ConfigurationError reports a client built without the merchant
// credentials needed to produce a valid signature.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("vnpay: %s is not configured", e.Field)
}

// PaymentRequest is the input of BuildPaymentURL.
type PaymentRequest struct {
	Amount      decimal.Decimal
	OrderRef    string
	Description string
	ReturnURL   string
	ClientIP    string
}

type Client struct {
	tmnCode   string
	secret    string
	baseURL   string
	returnURL string
	now       func() time.Time
}

func NewClient(cfg config.VNPay) (*Client, error) {
	c := &Client{
		tmnCode:   cfg.TmnCode,
		secret:    cfg.SecretKey,
		baseURL:   cfg.URL,
		returnURL: cfg.ReturnURL,
		now:       time.Now,
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// WithClock replaces the clock used for vnp_CreateDate.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) DefaultReturnURL() string { return c.returnURL }

func (c *Client) check() error {
	if c.tmnCode == "" {
		return &ConfigurationError{Field: "merchant code"}
	}
	if c.secret == "" {
		return &ConfigurationError{Field: "secret key"}
	}
	return nil
}

// MinorUnits scales amount by 100 and rounds to the nearest integer.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// BuildPaymentURL returns the signed redirect URL for one purchase.
func (c *Client) BuildPaymentURL(req PaymentRequest) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	if !req.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	if strings.TrimSpace(req.OrderRef) == "" {
		return "", ErrMissingReference
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = c.returnURL
	}

	params := map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    c.tmnCode,
		"vnp_Amount":     fmt.Sprintf("%d", MinorUnits(req.Amount)),
		"vnp_CurrCode":   CurrencyVND,
		"vnp_TxnRef":     req.OrderRef,
		"vnp_OrderInfo":  req.Description,
		"vnp_OrderType":  OrderType,
		"vnp_Locale":     LocaleVI,
		"vnp_ReturnUrl":  returnURL,
		"vnp_IpAddr":     req.ClientIP,
		"vnp_CreateDate": c.now().Format(createLayout),
	}
	params[SignatureField] = Sign(params, c.secret)
	return c.baseURL + "?" + Canonical(params), nil
}
