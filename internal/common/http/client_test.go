package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient_Defaults(t *testing.T) {
	client := NewHTTPClient()
	assert.Equal(t, 30*time.Second, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 100, transport.MaxIdleConns)
	assert.Equal(t, 10, transport.MaxIdleConnsPerHost)
	assert.Nil(t, client.CheckRedirect)
}

func TestNewHTTPClient_Options(t *testing.T) {
	custom := &http.Transport{}
	client := NewHTTPClient(WithTimeout(time.Second), WithTransport(custom))
	assert.Equal(t, time.Second, client.Timeout)
	assert.Same(t, custom, client.Transport)

	client = NewHTTPClient(WithMaxIdleConnsPerHost(2))
	assert.Equal(t, 2, client.Transport.(*http.Transport).MaxIdleConnsPerHost)
}

func TestWithoutRedirects(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer target.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusTemporaryRedirect)
	}))
	defer redirector.Close()

	resp, err := NewHTTPClient(WithoutRedirects()).Get(redirector.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	resp, err = NewHTTPClient().Get(redirector.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
