package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveVerification("accepted")
	m.ObserveVerification("accepted")
	m.ObserveVerification("replay_detected")
	m.ObserveAdminAction("pause", http.StatusOK)
	m.ObservePrune(7, nil)
	m.ObservePrune(3, nil)
	m.ObservePrune(0, errors.New("db down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.verifications.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("replay_detected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adminActions.WithLabelValues("pause", "200")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.noncesPruned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pruneFailures))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveReplayCall(202, 40*time.Millisecond)
	m.ObserveReplayCall(0, time.Second)
	m.ObserveHTTP(http.MethodGet, "/dlq-admin", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `transbot_replay_worker_request_duration_seconds_count{status="202"} 1`)
	assert.Contains(t, text, `transbot_replay_worker_request_duration_seconds_count{status="error"} 1`)
	assert.Contains(t, text, `transbot_http_request_duration_seconds_count{method="GET",route="/dlq-admin",status="200"} 1`)
	assert.Contains(t, text, "go_goroutines")
}
