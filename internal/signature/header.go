package signature

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	// HeaderName carries the signature envelope.
	HeaderName = "X-Transbot-Signature"
	// CompanyHeader names the tenant a signed call acts for.
	CompanyHeader = "X-Transbot-Company"

	version = "v2"
)

var headerPattern = regexp.MustCompile(`^v2 keyId=([^;\s]+);ts=([0-9]+);nonce=([^;\s]+);sig=([0-9a-f]{64})$`)

// Envelope is the parsed form of a signature header.
type Envelope struct {
	KeyID     string
	Timestamp int64
	Nonce     string
	Signature string
}

// ParseHeader decodes a v2 signature header. Anything that does not match
// the grammar exactly, including a timestamp that overflows int64, returns
// ErrMalformedSignature.
func ParseHeader(value string) (Envelope, error) {
	m := headerPattern.FindStringSubmatch(value)
	if m == nil {
		return Envelope{}, ErrMalformedSignature
	}

	ts, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Envelope{}, ErrMalformedSignature
	}

	return Envelope{
		KeyID:     m[1],
		Timestamp: ts,
		Nonce:     m[3],
		Signature: m[4],
	}, nil
}

// String renders the envelope in header form.
func (e Envelope) String() string {
	return fmt.Sprintf("%s keyId=%s;ts=%d;nonce=%s;sig=%s", version, e.KeyID, e.Timestamp, e.Nonce, e.Signature)
}
