package pagerduty

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the v3 webhook signatures.
const SignatureHeader = "X-PagerDuty-Signature"

const signaturePrefix = "v1="

// Sign returns the v1 signature of body, as PagerDuty would send it.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature header against body. The header may
// list several comma-separated signatures during secret rotation; any match
// is accepted.
func VerifySignature(secret string, body []byte, header string) error {
	if header == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, sig := range strings.Split(header, ",") {
		value, ok := strings.CutPrefix(strings.TrimSpace(sig), signaturePrefix)
		if !ok {
			continue
		}
		got, err := hex.DecodeString(value)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}
