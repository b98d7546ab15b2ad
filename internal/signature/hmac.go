package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
)

// Sign returns the lowercase hex HMAC-SHA256 of message under secret.
func Sign(secret []byte, message string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares two hex signatures in constant time. Strings of different
// length are never equal.
func Equal(expectedHex, suppliedHex string) bool {
	return subtle.ConstantTimeCompare([]byte(expectedHex), []byte(suppliedHex)) == 1
}

// BodyHash returns the lowercase hex SHA-256 of the raw body.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ReadBody reads the full request body and puts an identical reader back on
// r.Body so later handlers can consume it again.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return []byte{}, nil
	}

	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
