package signature

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/flags"
	"transbot-ops/internal/replayguard"
)

// DefaultSkewSeconds is the freshness window used when none is configured.
const DefaultSkewSeconds int64 = 300

// NonceReserver records a (key id, nonce) pair exactly once.
// replayguard.Guard implements it.
type NonceReserver interface {
	Reserve(ctx context.Context, keyID, nonce string, meta replayguard.Meta) error
}

// FlagResolver reports whether a flag is on for a company. flags.Gate
// implements it. Implementations must not fail; errors read as false.
type FlagResolver interface {
	Required(ctx context.Context, companyID, key string) bool
}

// Recorder receives every verification outcome.
type Recorder interface {
	ObserveVerification(outcome string)
}

// Verdict is the result of verifying one request. BodyText is always set.
type Verdict struct {
	OK              bool
	Reason          Reason
	BodyText        string
	ParsedBody      interface{}
	KeyID           string
	Timestamp       int64
	Nonce           string
	CompanyID       string
	SigningRequired bool
}

type VerifierConfig struct {
	Keys        KeyProvider
	Nonces      NonceReserver
	Flags       FlagResolver
	Recorder    Recorder
	SkewSeconds int64
	Now         func() time.Time
}

// Verifier checks signed internal requests. It holds no per-request state
// and is safe for concurrent use.
type Verifier struct {
	keys     KeyProvider
	nonces   NonceReserver
	flags    FlagResolver
	recorder Recorder
	skew     int64
	now      func() time.Time
	logger   logging.Logger
}

// NewVerifier creates a verifier. Keys and Nonces are required; Flags and
// Recorder are optional.
func NewVerifier(config VerifierConfig, logger logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if config.SkewSeconds <= 0 {
		config.SkewSeconds = DefaultSkewSeconds
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Verifier{
		keys:     config.Keys,
		nonces:   config.Nonces,
		flags:    config.Flags,
		recorder: config.Recorder,
		skew:     config.SkewSeconds,
		now:      config.Now,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "signature_verifier"}),
	}
}

// Verify runs the verification sequence against r. The request body is
// consumed and restored, so r can still be handled after a verdict.
func (v *Verifier) Verify(r *http.Request) Verdict {
	ctx := r.Context()

	body, readErr := ReadBody(r)
	verdict := Verdict{
		BodyText:  string(body),
		CompanyID: strings.TrimSpace(r.Header.Get(CompanyHeader)),
	}

	env, err := ParseHeader(r.Header.Get(HeaderName))
	if err != nil {
		return v.reject(r, verdict, ReasonMalformed, nil)
	}
	verdict.KeyID = env.KeyID
	verdict.Timestamp = env.Timestamp
	verdict.Nonce = env.Nonce

	if drift := v.now().Unix() - env.Timestamp; drift > v.skew || drift < -v.skew {
		return v.reject(r, verdict, ReasonTimestampOutOfWindow, nil, logging.Int64("drift_seconds", drift))
	}

	secret, err := v.keys.SecretForKey(ctx, env.KeyID)
	if err != nil || len(secret) == 0 {
		return v.reject(r, verdict, ReasonMissingSecret, err)
	}

	if readErr != nil {
		return v.reject(r, verdict, ReasonBadSignature, readErr)
	}
	expected := Sign(secret, Canonical{
		Timestamp: env.Timestamp,
		Nonce:     env.Nonce,
		Method:    r.Method,
		Path:      r.URL.EscapedPath(),
		BodyHash:  BodyHash(body),
		KeyID:     env.KeyID,
	}.String())
	if !Equal(expected, env.Signature) {
		return v.reject(r, verdict, ReasonBadSignature, nil)
	}

	err = v.nonces.Reserve(ctx, env.KeyID, env.Nonce, replayguard.Meta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	switch {
	case errors.Is(err, replayguard.ErrReplayDetected):
		return v.reject(r, verdict, ReasonReplayDetected, nil)
	case err != nil:
		return v.reject(r, verdict, ReasonNonceStoreUnavailable, err)
	}

	// Advisory only: the flag is reported, never enforced.
	if v.flags != nil && verdict.CompanyID != "" {
		verdict.SigningRequired = v.flags.Required(ctx, verdict.CompanyID, flags.RequireSignedInternalCalls)
	}

	verdict.OK = true
	if len(body) > 0 {
		var parsed interface{}
		if json.Unmarshal(body, &parsed) == nil {
			verdict.ParsedBody = parsed
		}
	}

	v.record(ReasonNone)
	v.logger.WithContext(ctx).Debug("Signed request accepted",
		logging.Field{Key: "key_id", Value: env.KeyID},
		logging.Field{Key: "path", Value: r.URL.Path},
		logging.Field{Key: "signing_required", Value: verdict.SigningRequired},
	)
	return verdict
}

func (v *Verifier) reject(r *http.Request, verdict Verdict, reason Reason, cause error, fields ...logging.Field) Verdict {
	verdict.OK = false
	verdict.Reason = reason
	v.record(reason)

	fields = append(fields,
		logging.Field{Key: "reason", Value: string(reason)},
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path},
		logging.Field{Key: "remote_addr", Value: clientIP(r)},
	)
	if verdict.KeyID != "" {
		fields = append(fields, logging.Field{Key: "key_id", Value: verdict.KeyID})
	}

	logger := v.logger.WithContext(r.Context())
	if reason == ReasonNonceStoreUnavailable {
		logger.Error("Signed request rejected", cause, fields...)
	} else {
		if cause != nil {
			fields = append(fields, logging.Err(cause))
		}
		logger.Warn("Signed request rejected", fields...)
	}
	return verdict
}

func (v *Verifier) record(reason Reason) {
	if v.recorder != nil {
		v.recorder.ObserveVerification(reason.String())
	}
}

// clientIP prefers the first X-Forwarded-For hop.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
