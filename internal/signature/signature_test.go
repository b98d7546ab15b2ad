package signature

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_String(t *testing.T) {
	c := Canonical{
		Timestamp: 1700000000,
		Nonce:     "abc",
		Method:    "post",
		Path:      "/dlq-replay",
		BodyHash:  BodyHash([]byte("{}")),
		KeyID:     "ops-admin-ui",
	}

	assert.Equal(t,
		"1700000000\nabc\nPOST\n/dlq-replay\n44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a\nops-admin-ui",
		c.String())
}

func TestBodyHash_Empty(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", BodyHash(nil))
	assert.Equal(t, BodyHash(nil), BodyHash([]byte{}))
}

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2
	assert.Equal(t,
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		Sign([]byte("Jefe"), "what do ya want for nothing?"))
}

func TestEqual(t *testing.T) {
	sig := Sign([]byte("s"), "m")
	assert.True(t, Equal(sig, sig))
	assert.False(t, Equal(sig, strings.ToUpper(sig)))
	assert.False(t, Equal(sig, sig[:63]))
	assert.False(t, Equal(sig, ""))
}

func TestReadBody_Restores(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":1}`))

	body, err := ReadBody(r)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	again, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again))

	empty, err := ReadBody(httptest.NewRequest(http.MethodGet, "/x", nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseHeader(t *testing.T) {
	sig := strings.Repeat("a1", 32)

	env, err := ParseHeader("v2 keyId=ops-admin-ui;ts=1700000000;nonce=7f1c;sig=" + sig)
	require.NoError(t, err)
	assert.Equal(t, Envelope{KeyID: "ops-admin-ui", Timestamp: 1700000000, Nonce: "7f1c", Signature: sig}, env)
	assert.Equal(t, "v2 keyId=ops-admin-ui;ts=1700000000;nonce=7f1c;sig="+sig, env.String())

	malformed := []string{
		"",
		"v1 foo=bar",
		"v2 keyId=k;ts=1;nonce=n;sig=" + sig[:63],
		"v2 keyId=k;ts=1;nonce=n;sig=" + sig + "0",
		"v2 keyId=k;ts=1;nonce=n;sig=" + strings.ToUpper(sig),
		"v1 keyId=k;ts=1;nonce=n;sig=" + sig,
		"v2 keyId=k;ts=-1;nonce=n;sig=" + sig,
		"v2 keyId=k;ts=99999999999999999999;nonce=n;sig=" + sig,
		"v2 keyId=;ts=1;nonce=n;sig=" + sig,
		"v2 ts=1;keyId=k;nonce=n;sig=" + sig,
		" v2 keyId=k;ts=1;nonce=n;sig=" + sig,
		"v2 keyId=k;ts=1;nonce=n;sig=" + sig + " ",
	}
	for _, value := range malformed {
		_, err := ParseHeader(value)
		assert.ErrorIs(t, err, ErrMalformedSignature, "header %q", value)
	}
}

func TestStaticKeys(t *testing.T) {
	keys := NewStaticKeys(map[string]string{"ops-admin-ui": "s1", "revoked": ""})

	secret, err := keys.SecretForKey(context.Background(), "ops-admin-ui")
	require.NoError(t, err)
	assert.Equal(t, []byte("s1"), secret)

	_, err = keys.SecretForKey(context.Background(), "revoked")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, []string{"ops-admin-ui"}, keys.IDs())
}

func TestSigner_Deterministic(t *testing.T) {
	signer := NewSigner("ops-admin-ui", []byte("secret"),
		WithSignerClock(func() time.Time { return time.Unix(1700000000, 0) }),
		WithNonceSource(func() string { return "fixed-nonce" }),
	)

	env := signer.Sign("post", "/dlq-replay", []byte(`{"company_id":"acme"}`))
	assert.Equal(t, "ops-admin-ui", env.KeyID)
	assert.Equal(t, int64(1700000000), env.Timestamp)
	assert.Equal(t, "fixed-nonce", env.Nonce)

	expected := Sign([]byte("secret"), Canonical{
		Timestamp: 1700000000,
		Nonce:     "fixed-nonce",
		Method:    "POST",
		Path:      "/dlq-replay",
		BodyHash:  BodyHash([]byte(`{"company_id":"acme"}`)),
		KeyID:     "ops-admin-ui",
	}.String())
	assert.Equal(t, expected, env.Signature)
}

func TestSigner_SignRequest(t *testing.T) {
	signer := NewSigner("ops-admin-ui", []byte("secret"))
	req := httptest.NewRequest(http.MethodPost, "https://worker.internal/dlq-replay?debug=1", bytes.NewBufferString(`{"x":1}`))

	env, err := signer.SignRequest(req, nil)
	require.NoError(t, err)
	assert.Equal(t, env.String(), req.Header.Get(HeaderName))
	assert.Len(t, env.Nonce, 36)

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(body))

	second := signer.Sign(http.MethodPost, "/dlq-replay", body)
	assert.NotEqual(t, env.Nonce, second.Nonce)
}
