package vnpay

import (
	"github.com/shopspring/decimal"
)

type CallbackStatus int

const (
	SignatureInvalid CallbackStatus = iota
	Malformed
	VerifiedFailure
	VerifiedSuccess
)

func (s CallbackStatus) String() string {
	switch s {
	case VerifiedSuccess:
		return "verified_success"
	case VerifiedFailure:
		return "verified_failure"
	case Malformed:
		return "malformed"
	default:
		return "signature_invalid"
	}
}

// CallbackResult is the classification of one inbound gateway callback.
type CallbackResult struct {
	Status        CallbackStatus
	OrderRef      string
	TransactionID string
	Amount        decimal.Decimal
	PayDate       string
	ResponseCode  string
	Message       string
}

// VerifyCallback classifies the callback parameters. A result other than
// VerifiedSuccess must never mark an order paid.
func (c *Client) VerifyCallback(params map[string]string) CallbackResult {
	claimed, ok := params[SignatureField]
	if !ok || claimed == "" || c.check() != nil || !Verify(params, c.secret, claimed) {
		return CallbackResult{Status: SignatureInvalid, OrderRef: params["vnp_TxnRef"], Message: "Invalid signature"}
	}

	ref := params["vnp_TxnRef"]
	if ref == "" {
		return CallbackResult{Status: Malformed, Message: "Order number not found"}
	}

	code := params["vnp_ResponseCode"]
	if txStatus := params["vnp_TransactionStatus"]; code != CodeSuccess || txStatus != CodeSuccess {
		msg := ResponseMessage(code)
		if code == CodeSuccess {
			msg = "Transaction not completed (status " + txStatus + ")"
		}
		return CallbackResult{
			Status:       VerifiedFailure,
			OrderRef:     ref,
			ResponseCode: code,
			Message:      msg,
		}
	}

	minor, err := decimal.NewFromString(params["vnp_Amount"])
	if err != nil {
		return CallbackResult{Status: Malformed, OrderRef: ref, Message: "Invalid amount"}
	}
	return CallbackResult{
		Status:        VerifiedSuccess,
		OrderRef:      ref,
		TransactionID: params["vnp_TransactionNo"],
		Amount:        minor.Div(decimal.NewFromInt(100)),
		PayDate:       params["vnp_PayDate"],
		ResponseCode:  code,
		Message:       "Payment successful",
	}
}

var responseMessages = map[string]string{
	"00": "Payment successful",
	"07": "Amount deducted, transaction flagged as suspicious",
	"09": "Card or account is not registered for internet banking",
	"10": "Card or account authentication failed too many times",
	"11": "Payment window expired",
	"12": "Card or account is locked",
	"13": "Wrong one-time password",
	"24": "Customer cancelled the transaction",
	"51": "Insufficient account balance",
	"65": "Daily transaction limit exceeded",
	"75": "Issuing bank is under maintenance",
	"79": "Wrong payment password too many times",
	"99": "Unknown gateway error",
}

// ResponseMessage maps a vnp_ResponseCode to a human readable message.
func ResponseMessage(code string) string {
	if m, ok := responseMessages[code]; ok {
		return m
	}
	if code == "" {
		return "Payment failed"
	}
	return "Payment failed with code " + code
}
