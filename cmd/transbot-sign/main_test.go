package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transbot-ops/internal/admin"
	"transbot-ops/internal/signature"
)

func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return strings.TrimSpace(stdout.String()), stderr.String(), code
}

func TestHeaderThenVerify(t *testing.T) {
	header, _, code := execute(t, "header", "--secret", "s3cret", "--path", "/dlq-replay", "-d", `{"company_id":"acme"}`)
	require.Equal(t, 0, code)

	env, err := signature.ParseHeader(header)
	require.NoError(t, err)
	assert.Equal(t, "ops-admin-ui", env.KeyID)

	out, stderr, code := execute(t, "verify", "--secret", "s3cret", "--path", "/dlq-replay", "-d", `{"company_id":"acme"}`, "--header", header)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "ok key_id=ops-admin-ui")
	assert.Contains(t, out, "nonce="+env.Nonce)
}

func TestHeaderThenVerify_EscapedPath(t *testing.T) {
	header, _, code := execute(t, "header", "--secret", "s3cret", "--path", "/dlq%20replay", "-d", "{}")
	require.Equal(t, 0, code)

	out, stderr, code := execute(t, "verify", "--secret", "s3cret", "--path", "/dlq%20replay", "-d", "{}", "--header", header)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "ok key_id=ops-admin-ui")

	_, stderr, code = execute(t, "verify", "--secret", "s3cret", "--path", "dlq-replay", "-d", "{}", "--header", header)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--path must start with '/'")
}

func TestVerify_Rejections(t *testing.T) {
	header, _, _ := execute(t, "header", "--secret", "s3cret", "--path", "/dlq-replay", "-d", "{}")

	_, stderr, code := execute(t, "verify", "--secret", "s3cret", "--path", "/dlq-replay", "-d", `{"x":1}`, "--header", header)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "bad_signature")

	_, stderr, code = execute(t, "verify", "--secret", "other", "--path", "/dlq-replay", "-d", "{}", "--header", header)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "bad_signature")

	_, stderr, code = execute(t, "verify", "--secret", "s3cret", "--header", "v1 nonsense")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "missing_or_malformed_signature")
}

func TestHeader_SecretFromEnvAndBodyFile(t *testing.T) {
	t.Setenv(secretEnv, "from-env")
	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":1}`), 0o600))

	out, _, code := execute(t, "header", "--body-file", path, "--company", "acme", "--curl")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "-H 'X-Transbot-Signature: v2 keyId=ops-admin-ui;"))
	assert.Contains(t, out, "-H 'X-Transbot-Company: acme'")
}

func TestHeader_Errors(t *testing.T) {
	t.Setenv(secretEnv, "")

	_, stderr, code := execute(t, "header", "-d", "{}")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "signing secret is required")

	_, stderr, code = execute(t, "header", "--secret", "x", "-d", "{}", "--body-file", "body.json")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "mutually exclusive")
}

func TestToken(t *testing.T) {
	secret := strings.Repeat("k", 32)

	token, _, code := execute(t, "token", "--secret", secret, "--user", "user-7")
	require.Equal(t, 0, code)

	provider, err := admin.NewJWTIdentityProvider(secret)
	require.NoError(t, err)
	userID, err := provider.Identify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", userID)

	_, stderr, code := execute(t, "token", "--secret", "short", "--user", "user-7")
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, stderr)
}
