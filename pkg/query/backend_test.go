package query

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/neuronote/pkg/observability"
)

func testBackendConfig(url string) BackendConfig {
	return BackendConfig{
		URL:          url,
		Timeout:      2 * time.Second,
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
}

func TestNewHTTPBackend_RequiresURL(t *testing.T) {
	_, err := NewHTTPBackend(BackendConfig{}, nil)
	assert.Error(t, err)
}

func TestHTTPBackend_Process(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"executed_at": "2024-06-01T12:00:00Z",
			"input": "hello",
			"results": [{"plugin": "memory_search", "success": true, "output": {"hits": 2}}]
		}`))
	}))
	defer server.Close()

	backend, err := NewHTTPBackend(testBackendConfig(server.URL), nil)
	require.NoError(t, err)

	trace, err := backend.Process(context.Background(), Request{
		UserID:    "u1",
		InputText: "hello",
		Context:   map[string]interface{}{"lang": "en"},
	})
	require.NoError(t, err)

	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "en", got.Context["lang"])
	assert.Equal(t, "hello", trace.Input)
	require.Len(t, trace.Results, 1)
	assert.Equal(t, "memory_search", trace.Results[0].Plugin)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), trace.ExecutedAt.UTC())
}

func TestHTTPBackend_ProcessUnixSecondsTrace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"executed_at": 1719748800.123,
			"input": "hello",
			"results": [{"plugin": "echo", "input": "hello", "success": true, "output": "hello", "error": null}]
		}`))
	}))
	defer server.Close()

	backend, err := NewHTTPBackend(testBackendConfig(server.URL), nil)
	require.NoError(t, err)

	trace, err := backend.Process(context.Background(), Request{UserID: "u1", InputText: "hello"})
	require.NoError(t, err)

	want := time.Date(2024, 6, 30, 12, 0, 0, 123000000, time.UTC)
	assert.WithinDuration(t, want, trace.ExecutedAt, time.Millisecond)
	require.Len(t, trace.Results, 1)
	assert.Empty(t, trace.Results[0].Error)
	assert.True(t, trace.Results[0].Success)
}

func TestHTTPBackend_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"input":"x","results":[]}`))
	}))
	defer server.Close()

	var logs bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &logs)
	backend, err := NewHTTPBackend(testBackendConfig(server.URL), logger)
	require.NoError(t, err)

	_, err = backend.Process(context.Background(), Request{UserID: "u1", InputText: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Contains(t, logs.String(), "query_backend")
}

func TestHTTPBackend_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error after retries",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad input", http.StatusBadRequest)
			},
		},
		{
			name: "invalid body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			backend, err := NewHTTPBackend(testBackendConfig(server.URL), nil)
			require.NoError(t, err)

			_, err = backend.Process(context.Background(), Request{UserID: "u1", InputText: "x"})
			assert.ErrorIs(t, err, ErrBackendUnavailable)
		})
	}
}

func TestHTTPBackend_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	cfg := testBackendConfig(url)
	cfg.RetryMax = 0
	backend, err := NewHTTPBackend(cfg, nil)
	require.NoError(t, err)

	_, err = backend.Process(context.Background(), Request{UserID: "u1", InputText: "x"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
