package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
)

// ErrInvalidSignatureHeader indicates the x-signature header could not be parsed.
var ErrInvalidSignatureHeader = apperrors.Wrap(apperrors.ErrUnauthorized, "invalid signature header")

// Signature is the parsed form of "ts=<unix>,v1=<hex>".
type Signature struct {
	Timestamp string
	V1        string
}

// ParseSignatureHeader parses an x-signature header. Unknown keys are ignored.
func ParseSignatureHeader(header string) (*Signature, error) {
	sig := &Signature{}
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			sig.Timestamp = strings.TrimSpace(value)
		case "v1":
			sig.V1 = strings.ToLower(strings.TrimSpace(value))
		}
	}

	if sig.Timestamp == "" || sig.V1 == "" {
		return nil, ErrInvalidSignatureHeader
	}
	return sig, nil
}

// SignatureManifest builds the string the provider signs.
func SignatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	b.WriteString("id:")
	b.WriteString(strings.ToLower(dataID))
	b.WriteString(";request-id:")
	b.WriteString(requestID)
	b.WriteString(";ts:")
	b.WriteString(ts)
	b.WriteString(";")
	return b.String()
}

// ComputeSignature returns the lowercase hex HMAC-SHA256 of the manifest under secret.
func ComputeSignature(secret, dataID, requestID, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(SignatureManifest(dataID, requestID, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the expected signature in constant time.
func VerifySignature(secret, header, dataID, requestID string) bool {
	sig, err := ParseSignatureHeader(header)
	if err != nil {
		return false
	}

	expected := ComputeSignature(secret, dataID, requestID, sig.Timestamp)
	return hmac.Equal([]byte(expected), []byte(sig.V1))
}
