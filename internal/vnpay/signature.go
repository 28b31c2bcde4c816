// Package vnpay implements the VNPay 2.1.0 redirect protocol: canonical
// parameter encoding, HMAC-SHA512 signing and callback classification.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strings"
)

const (
	ParamPrefix = "vnp_"
	// SignatureField is never part of the signed payload.
	SignatureField = "vnp_SecureHash"
)

// Canonical sorts params by key and joins them as form-encoded key=value
// pairs, spaces encoded as '+'.
func Canonical(params map[string]string) string {
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return v.Encode()
}

// Sign returns the lowercase hex HMAC-SHA512 of Canonical(params).
func Sign(params map[string]string, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(Canonical(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over the vnp_ parameters, excluding the
// signature itself, and compares it in constant time.
func Verify(params map[string]string, secret, claimed string) bool {
	signed := make(map[string]string, len(params))
	for k, v := range params {
		if k == SignatureField || !strings.HasPrefix(k, ParamPrefix) {
			continue
		}
		signed[k] = v
	}
	want := Sign(signed, secret)
	return hmac.Equal([]byte(want), []byte(claimed))
}
