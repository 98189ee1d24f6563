package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"commission-app/internal/apperr"
)

const SignatureHeader = "X-Payment-Signature"

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the raw body. The header may carry a
// "sha256=" prefix.
func VerifySignature(body []byte, header, secret string) error {
	sig := strings.TrimSpace(header)
	sig = strings.TrimPrefix(sig, "sha256=")
	secret = strings.TrimSpace(secret)
	if sig == "" || secret == "" {
		return invalidSignature()
	}

	got, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return invalidSignature()
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), got) {
		return invalidSignature()
	}
	return nil
}

func invalidSignature() error {
	return apperr.New(apperr.KindUnauthorized, apperr.CodeInvalidSignature, "invalid payment signature")
}
