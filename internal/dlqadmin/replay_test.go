package dlqadmin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transbot-ops/internal/circuitbreaker"
	apperrors "transbot-ops/internal/common/errors"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/replayguard"
	"transbot-ops/internal/signature"
)

const (
	workerKeyID  = "ops-admin-ui"
	workerSecret = "shared-secret-for-replay"
)

type callRecorder struct {
	statuses []int
}

func (c *callRecorder) ObserveReplayCall(status int, _ time.Duration) {
	c.statuses = append(c.statuses, status)
}

// fakeWorker runs the real verifier in front of a handler that echoes what
// it received, on every path.
func fakeWorker(t *testing.T, status int) (*httptest.Server, *int32) {
	t.Helper()

	verifier := signature.NewVerifier(signature.VerifierConfig{
		Keys:   signature.NewStaticKeys(map[string]string{workerKeyID: workerSecret}),
		Nonces: replayguard.New(replayguard.NewMemoryStore(), nil),
	}, logging.NewNopLogger())

	var calls int32
	handler := signature.Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		verdict, _ := signature.VerdictFromContext(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"received": verdict.ParsedBody,
			"company":  r.Header.Get(signature.CompanyHeader),
			"key_id":   verdict.KeyID,
			"path":     r.URL.EscapedPath(),
		})
	}))

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, &calls
}

func newClient(t *testing.T, url, secret string, recorder ReplayRecorder, breaker *circuitbreaker.GoBreakerAdapter) *ReplayClient {
	t.Helper()
	client, err := NewReplayClient(ReplayClientConfig{
		URL:      url,
		Timeout:  2 * time.Second,
		Signer:   signature.NewSigner(workerKeyID, []byte(secret)),
		Breaker:  breaker,
		Recorder: recorder,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return client
}

func TestReplayClient_EndToEnd(t *testing.T) {
	server, calls := fakeWorker(t, http.StatusOK)
	recorder := &callRecorder{}
	client := newClient(t, server.URL+"/dlq-replay", workerSecret, recorder, nil)

	resp, err := client.Replay(context.Background(), ReplayRequest{
		CompanyID: "acme",
		Max:       25,
		DryRun:    true,
		DLQIDs:    []string{"d1", "d2"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, []int{200}, recorder.statuses)

	var echoed map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body, &echoed))
	assert.Equal(t, "acme", echoed["company"])
	assert.Equal(t, workerKeyID, echoed["key_id"])
	assert.Equal(t, map[string]interface{}{
		"company_id": "acme",
		"max":        float64(25),
		"dry_run":    true,
		"dlq_ids":    []interface{}{"d1", "d2"},
	}, echoed["received"])
}

func TestReplayClient_EndToEndThroughController(t *testing.T) {
	server, _ := fakeWorker(t, http.StatusAccepted)
	controller := NewController(&mockStore{}, newClient(t, server.URL+"/dlq-replay", workerSecret, nil, nil), nil, logging.NewNopLogger())

	out := controller.Handle(context.Background(), operator, Request{Action: "replay", CompanyID: "acme"})
	assert.Equal(t, http.StatusAccepted, out.StatusCode)

	var echoed map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Body, &echoed))
	assert.Equal(t, map[string]interface{}{"company_id": "acme", "max": float64(50), "dry_run": false}, echoed["received"])
}

func TestReplayClient_WrongSecretRelaysWorkerRejection(t *testing.T) {
	server, calls := fakeWorker(t, http.StatusOK)
	client := newClient(t, server.URL+"/dlq-replay", "not-the-worker-secret", nil, nil)

	resp, err := client.Replay(context.Background(), ReplayRequest{CompanyID: "acme", Max: 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"ok":false,"error":"bad_signature"}`, string(resp.Body))
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestReplayClient_WorkerServerErrorIsRelayed(t *testing.T) {
	server, _ := fakeWorker(t, http.StatusInternalServerError)
	client := newClient(t, server.URL+"/dlq-replay", workerSecret, nil, nil)

	resp, err := client.Replay(context.Background(), ReplayRequest{CompanyID: "acme", Max: 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestReplayClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/dlq-replay"
	server.Close()

	recorder := &callRecorder{}
	client := newClient(t, url, workerSecret, recorder, nil)

	_, err := client.Replay(context.Background(), ReplayRequest{CompanyID: "acme", Max: 1})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
	assert.Equal(t, []int{0}, recorder.statuses)
}

func TestReplayClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, err := NewReplayClient(ReplayClientConfig{
		URL:     server.URL + "/dlq-replay",
		Timeout: 50 * time.Millisecond,
		Signer:  signature.NewSigner(workerKeyID, []byte(workerSecret)),
	}, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = client.Replay(context.Background(), ReplayRequest{CompanyID: "acme", Max: 1})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
}

func TestReplayClient_OpenBreakerSkipsNetwork(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
			_ = conn.Close()
		}
	}))
	defer server.Close()

	breaker := circuitbreaker.NewGoBreaker("test-replay", circuitbreaker.Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, logging.NewNopLogger())
	client := newClient(t, server.URL+"/dlq-replay", workerSecret, nil, breaker)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.Replay(ctx, ReplayRequest{CompanyID: "acme", Max: 1})
		require.Error(t, err)
		assert.False(t, errors.Is(err, circuitbreaker.ErrOpen))
	}
	require.True(t, breaker.IsOpen())

	_, err := client.Replay(ctx, ReplayRequest{CompanyID: "acme", Max: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, circuitbreaker.ErrOpen))
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestReplayClient_ServerErrorsKeepBreakerClosed(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"ok":false,"error":"busy"}`))
	}))
	defer server.Close()

	breaker := circuitbreaker.NewGoBreaker("test-replay", circuitbreaker.Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, logging.NewNopLogger())
	client := newClient(t, server.URL+"/dlq-replay", workerSecret, nil, breaker)

	for i := 0; i < 5; i++ {
		resp, err := client.Replay(context.Background(), ReplayRequest{CompanyID: "acme", Max: 1})
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.JSONEq(t, `{"ok":false,"error":"busy"}`, string(resp.Body))
	}
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
}

func TestReplayClient_EscapedWorkerPath(t *testing.T) {
	server, calls := fakeWorker(t, http.StatusOK)

	for _, path := range []string{"/dlq%20replay", "/r%C3%A9play", "/hooks/a%2Fb"} {
		t.Run(path, func(t *testing.T) {
			client := newClient(t, server.URL+path, workerSecret, nil, nil)

			resp, err := client.Replay(context.Background(), ReplayRequest{CompanyID: "acme", Max: 1})
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))

			var echoed map[string]interface{}
			require.NoError(t, json.Unmarshal(resp.Body, &echoed))
			assert.Equal(t, path, echoed["path"])
		})
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestNewReplayClient_Validation(t *testing.T) {
	signer := signature.NewSigner(workerKeyID, []byte(workerSecret))

	_, err := NewReplayClient(ReplayClientConfig{Signer: signer}, nil)
	assert.Error(t, err)

	_, err = NewReplayClient(ReplayClientConfig{URL: "/dlq-replay", Signer: signer}, nil)
	assert.Error(t, err)

	_, err = NewReplayClient(ReplayClientConfig{URL: "https://worker.internal/dlq-replay"}, nil)
	assert.Error(t, err)

	client, err := NewReplayClient(ReplayClientConfig{URL: "https://worker.internal", Signer: signer}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/", client.path)
}

func TestReplayClient_SignsExactBody(t *testing.T) {
	var got []byte
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		header = r.Header.Get(signature.HeaderName)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(t, server.URL+"/hooks/dlq-replay", workerSecret, nil, nil)
	_, err := client.Replay(context.Background(), ReplayRequest{CompanyID: "acme", Max: 2})
	require.NoError(t, err)

	assert.JSONEq(t, `{"company_id":"acme","max":2,"dry_run":false}`, string(got))

	env, err := signature.ParseHeader(header)
	require.NoError(t, err)
	expected := signature.Sign([]byte(workerSecret), signature.Canonical{
		Timestamp: env.Timestamp,
		Nonce:     env.Nonce,
		Method:    http.MethodPost,
		Path:      "/hooks/dlq-replay",
		BodyHash:  signature.BodyHash(got),
		KeyID:     workerKeyID,
	}.String())
	assert.Equal(t, expected, env.Signature)
}

func TestReplayClient_RejectsInvalidPayloadBeforeSending(t *testing.T) {
	server, calls := fakeWorker(t, http.StatusOK)
	recorder := &callRecorder{}
	client := newClient(t, server.URL+"/dlq-replay", workerSecret, recorder, nil)

	tests := []ReplayRequest{
		{CompanyID: "", Max: 1},
		{CompanyID: "acme", Max: 0},
		{CompanyID: "acme", Max: 1001},
		{CompanyID: "acme", Max: 1, DLQIDs: []string{""}},
	}
	for _, req := range tests {
		_, err := client.Replay(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
	}

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
	assert.Empty(t, recorder.statuses)
}
