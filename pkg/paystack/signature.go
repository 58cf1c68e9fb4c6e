package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader is the request header carrying the webhook signature.
const SignatureHeader = "X-Paystack-Signature"

// ComputeSignature returns the hex HMAC-SHA512 of body under the secret key.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature against the raw, unparsed
// request body. The body must not be decoded and re-encoded before this
// check: any byte-level change breaks the MAC. Comparison is constant-time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
