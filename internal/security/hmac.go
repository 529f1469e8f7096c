package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"ticket-gate/internal/status"
)

// Hmac256 generates the HMAC-SHA256 hex of body under key.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// VerifyWebhookSignature checks a payment-provider webhook signature in
// constant time. An empty configured key disables verification (dev).
func VerifyWebhookSignature(body []byte, key, receivedHMAC string) error {
	if key == "" {
		return nil
	}

	expected := Hmac256(body, []byte(key))
	if !hmac.Equal([]byte(receivedHMAC), []byte(expected)) {
		return status.ErrBadWebhookHMAC
	}

	return nil
}
