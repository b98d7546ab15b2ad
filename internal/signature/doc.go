// Package signature implements the v2 signing scheme used for
// service-to-service calls inside transbot.
//
// A signed request carries one header:
//
//	X-Transbot-Signature: v2 keyId=<id>;ts=<unix-seconds>;nonce=<token>;sig=<64 hex>
//
// The signature is the lowercase hex HMAC-SHA256, keyed by the secret
// registered for keyId, over the canonical string
//
//	ts \n nonce \n METHOD \n path \n sha256hex(body) \n keyId
//
// where path excludes the query string and the body hash covers the raw
// bytes exactly as sent.
//
// # Verification
//
// Verifier.Verify runs a fixed sequence of checks and stops at the first
// failure:
//
//  1. the header parses (missing_or_malformed_signature)
//  2. |now - ts| <= skew, 300 seconds by default (timestamp_out_of_window)
//  3. a secret exists for keyId (missing_secret)
//  4. the recomputed signature matches in constant time (bad_signature)
//  5. (keyId, nonce) has never been seen before (replay_detected)
//  6. the require_signed_internal_calls flag is resolved for the company
//     named by X-Transbot-Company; the result is reported on the Verdict
//     and never causes a rejection
//
// The nonce is reserved only after the signature is proven, so an attacker
// cannot burn nonces without knowing a secret.
//
// # Usage
//
// Signing an outbound call:
//
//	signer := signature.NewSigner("ops-admin-ui", secret)
//	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
//	if _, err := signer.SignRequest(req, body); err != nil {
//	    return err
//	}
//
// Protecting an internal endpoint:
//
//	v := signature.NewVerifier(signature.VerifierConfig{
//	    Keys:   signature.NewStaticKeys(keys),
//	    Nonces: guard,
//	}, logger)
//	router.Handle("/internal/verify", signature.Middleware(v)(handler))
package signature
