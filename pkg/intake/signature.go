package intake

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyHMACSHA256 checks a hex-encoded HMAC-SHA256 signature over body
// using secret, in constant time. Used directly for Datadog, with the
// value of the request's X-Signature header.
func VerifyHMACSHA256(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifySentrySignature checks a Sentry signature (the request's
// X-Signature header), formatted "<timestamp>,<signature>" — only the signature half is
// HMAC-verified, matching Sentry's own webhook contract.
func VerifySentrySignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	parts := strings.SplitN(header, ",", 2)
	if len(parts) != 2 {
		return false
	}
	return VerifyHMACSHA256(secret, body, parts[1])
}

// VerifyPagerDutySignature is a placeholder: PagerDuty's webhook
// signing scheme (Ed25519 over X-PagerDuty-Signature) is not modeled
// here since no PagerDuty parser payload sample exists in this pack.
// It returns true for every request, whatever the secret and header, so
// PagerDuty webhooks are not authenticated.
func VerifyPagerDutySignature(secret string, body []byte, header string) bool {
	return true
}
