package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		client := New(nil)
		assert.Equal(t, DefaultTimeout, client.defaultTimeout)
		assert.Equal(t, defaultUserAgent, client.userAgent)
	})

	t.Run("custom config", func(t *testing.T) {
		cfg := Config{DefaultTimeout: 5 * time.Second, UserAgent: "Haven-Test/1.0"}
		client := New(&cfg)

		assert.Equal(t, 5*time.Second, client.defaultTimeout)
		assert.Equal(t, "Haven-Test/1.0", client.userAgent)
		assert.Zero(t, cfg.MaxIdleConns, "caller config must not be mutated")
	})

	t.Run("injected transport", func(t *testing.T) {
		transport := httpmock.NewMockTransport()
		client := New(&Config{Transport: transport})
		assert.Same(t, transport, client.client.Transport)
	})
}

func TestDo_UserAgent(t *testing.T) {
	var receivedUA string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(t.Context(), req)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, "Haven-Go", receivedUA)
}

func TestDo_ContextCancellation(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(ctx, req)
	defer closeResponseBody(t, resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_DefaultTimeout(t *testing.T) {
	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })

	client := newTestClientWithConfig(t, &Config{DefaultTimeout: 50 * time.Millisecond})

	resp, err := client.Get(t.Context(), server.URL, nil)
	defer closeResponseBody(t, resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_BodyReadableAfterReturn(t *testing.T) {
	payload := strings.Repeat("photo ", 4096)
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, payload)
	})

	// Context without deadline so the default timeout wraps the request
	client := newTestClientWithConfig(t, &Config{DefaultTimeout: time.Second})

	resp, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestDo_Hooks(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://photos.test/search",
		httpmock.NewStringResponder(http.StatusTeapot, "short and stout"))

	client := newTestClientWithConfig(t, &Config{Transport: transport})

	var before, after atomic.Int32
	var status int
	client.SetBeforeRequestHook(func(r *http.Request) {
		before.Add(1)
		assert.Equal(t, "photos.test", r.URL.Host)
	})
	client.SetAfterResponseHook(func(r *http.Request, resp *http.Response, err error, elapsed time.Duration) {
		after.Add(1)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		status = resp.StatusCode
	})

	resp, err := client.Get(t.Context(), "https://photos.test/search", nil)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, int32(1), before.Load())
	assert.Equal(t, int32(1), after.Load())
	assert.Equal(t, http.StatusTeapot, status)
}

func TestGet_Headers(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://photos.test/search",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Client-ID key", req.Header.Get("Authorization"))
			assert.Equal(t, "application/json", req.Header.Get("Accept"))
			return httpmock.NewStringResponse(http.StatusOK, "{}"), nil
		})

	client := newTestClientWithConfig(t, &Config{Transport: transport})

	header := http.Header{}
	header.Set("Authorization", "Client-ID key")
	header.Set("Accept", "application/json")

	resp, err := client.Get(t.Context(), "https://photos.test/search", header)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestDo_NilRequest(t *testing.T) {
	client := newTestClient(t)
	_, err := client.Do(t.Context(), nil)
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	client := New(nil)
	client.Close()
	client.Close()
}
