package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// verifySignature checks the HMAC-SHA256 signature of a webhook body.
func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	// Providers send either a bare hex digest or a "sha256=<hex>" header.
	signature = strings.TrimPrefix(signature, "sha256=")

	expected := computeSignature(body, secret)

	// Timing-safe comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// computeSignature computes the hex HMAC-SHA256 digest of body.
func computeSignature(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
