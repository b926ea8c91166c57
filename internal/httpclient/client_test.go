package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestNew(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		cfg := DefaultConfig()
		client := New(&cfg)

		require.NotNil(t, client, "expected non-nil client")
		assert.Equal(t, DefaultTimeout, client.defaultTimeout, "expected default timeout")
		assert.Equal(t, defaultUserAgent, client.userAgent, "expected default user agent")
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		client := New(nil)

		require.NotNil(t, client, "expected non-nil client")
		assert.Equal(t, DefaultTimeout, client.defaultTimeout, "expected default timeout")
	})

	t.Run("zero values use defaults", func(t *testing.T) {
		cfg := Config{}
		client := New(&cfg)

		assert.Equal(t, DefaultTimeout, client.defaultTimeout, "expected default timeout")
		assert.NotEmpty(t, client.userAgent, "expected non-empty user agent")
	})
}

func TestDo_BasicRequest(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method, "expected GET method")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	})

	client := New(nil)
	t.Cleanup(client.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err, "failed to create request")

	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err, "request failed")
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "expected status 200")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read body")
	assert.Equal(t, "success", string(body), "expected body 'success'")
}

func TestDo_UserAgent(t *testing.T) {
	receivedUA := ""
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	})

	cfg := Config{UserAgent: "TestAgent/1.0"}
	client := New(&cfg)
	t.Cleanup(client.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err, "failed to create request")

	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err, "request failed")
	_ = resp.Body.Close()

	assert.Equal(t, "TestAgent/1.0", receivedUA, "expected configured user agent")
}

func TestDo_ContextCancellation(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	})

	client := New(nil)
	t.Cleanup(client.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err, "failed to create request")

	_, err = client.Do(ctx, req) //nolint:bodyclose // error path, no body
	require.Error(t, err, "expected timeout error")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "expected deadline exceeded")
}
