package signature

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Signer produces v2 signature headers for outbound calls.
type Signer struct {
	keyID  string
	secret []byte
	now    func() time.Time
	nonce  func() string
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithSignerClock overrides the time source.
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// WithNonceSource overrides the nonce generator. The default is a random
// UUID per call.
func WithNonceSource(nonce func() string) SignerOption {
	return func(s *Signer) {
		s.nonce = nonce
	}
}

// NewSigner creates a signer for one key.
func NewSigner(keyID string, secret []byte, opts ...SignerOption) *Signer {
	s := &Signer{
		keyID:  keyID,
		secret: secret,
		now:    time.Now,
		nonce:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeyID returns the key id placed in every envelope.
func (s *Signer) KeyID() string {
	return s.keyID
}

// Sign builds the envelope for a request with the given method, escaped
// path (without query) and raw body.
func (s *Signer) Sign(method, path string, body []byte) Envelope {
	env := Envelope{
		KeyID:     s.keyID,
		Timestamp: s.now().Unix(),
		Nonce:     s.nonce(),
	}

	env.Signature = Sign(s.secret, Canonical{
		Timestamp: env.Timestamp,
		Nonce:     env.Nonce,
		Method:    method,
		Path:      path,
		BodyHash:  BodyHash(body),
		KeyID:     env.KeyID,
	}.String())

	return env
}

// SignRequest signs req and sets the signature header. When body is nil the
// request body is read and restored.
func (s *Signer) SignRequest(req *http.Request, body []byte) (Envelope, error) {
	if body == nil {
		var err error
		if body, err = ReadBody(req); err != nil {
			return Envelope{}, err
		}
	}

	env := s.Sign(req.Method, req.URL.EscapedPath(), body)
	req.Header.Set(HeaderName, env.String())
	return env, nil
}
