package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Provider-Signature"

// Sign computes the signature the provider is expected to send for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the webhook signature in constant time.
func VerifySignature(payload []byte, signature, secret string) error {
	if secret == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}
	if signature == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook signature missing")
	}
	expected := Sign(payload, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook signature mismatch")
	}
	return nil
}
