package signature

import "errors"

// Reason is the machine-readable outcome of a verification. The empty
// reason means the request was accepted.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonMalformed             Reason = "missing_or_malformed_signature"
	ReasonTimestampOutOfWindow  Reason = "timestamp_out_of_window"
	ReasonMissingSecret         Reason = "missing_secret"
	ReasonBadSignature          Reason = "bad_signature"
	ReasonReplayDetected        Reason = "replay_detected"
	ReasonNonceStoreUnavailable Reason = "nonce_store_unavailable"
)

// String returns the wire form, "accepted" for ReasonNone.
func (r Reason) String() string {
	if r == ReasonNone {
		return "accepted"
	}
	return string(r)
}

var (
	// ErrMalformedSignature is returned by ParseHeader.
	ErrMalformedSignature = errors.New("missing or malformed signature header")
	// ErrUnknownKey is returned by a KeyProvider with no secret for a key id.
	ErrUnknownKey = errors.New("no secret configured for key id")
)
