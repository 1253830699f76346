package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignHMAC computes the hex HMAC-SHA256 of a delivery payload with the
// subscription secret. The worker puts it in the X-Signature header.
func SignHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC reports whether a received X-Signature matches the payload.
// Comparison is constant-time.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	b, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), b)
}
