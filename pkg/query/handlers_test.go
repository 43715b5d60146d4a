package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/neuronote/pkg/audit"
	"github.com/platinummonkey/neuronote/pkg/httputil"
	"github.com/platinummonkey/neuronote/pkg/observability"
)

func newQueryRouter(backend Backend) (*mux.Router, *audit.MemoryStore) {
	traces := audit.NewMemoryStore()
	svc := NewService(backend, traces, nil, nil, observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}))
	router := mux.NewRouter()
	NewHandlers(svc).RegisterRoutes(router)
	return router, traces
}

func TestHandlers_Submit(t *testing.T) {
	router, traces := newQueryRouter(stubBackend(&audit.Trace{
		Results: []audit.PluginResult{{Plugin: "memory_search", Success: true, Output: "ok"}},
	}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/query",
		strings.NewReader(`{"user_id":"u1","input_text":"hello","context":{}}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "memory_search", resp.Results[0].Plugin)

	_, err := traces.Get(context.Background(), resp.TraceID)
	assert.NoError(t, err)
}

func TestHandlers_SubmitErrors(t *testing.T) {
	tests := []struct {
		name       string
		backend    Backend
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "malformed json",
			backend:    stubBackend(&audit.Trace{}, nil),
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing input",
			backend:    stubBackend(&audit.Trace{}, nil),
			body:       `{"user_id":"u1"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"input_text is required"}`,
		},
		{
			name:       "backend down",
			backend:    stubBackend(nil, ErrBackendUnavailable),
			body:       `{"user_id":"u1","input_text":"hi"}`,
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"query backend unavailable"}`,
		},
		{
			name:       "unexpected failure",
			backend:    stubBackend(nil, errors.New("boom")),
			body:       `{"user_id":"u1","input_text":"hi"}`,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newQueryRouter(tt.backend)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("POST", "/query", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestHandlers_MethodNotAllowed(t *testing.T) {
	router, _ := newQueryRouter(stubBackend(&audit.Trace{}, nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/query", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlers_Use(t *testing.T) {
	traces := audit.NewMemoryStore()
	svc := NewService(stubBackend(&audit.Trace{}, nil), traces, nil, nil, observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}))
	limiter := httputil.NewRateLimiter(httputil.RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})

	router := mux.NewRouter()
	NewHandlers(svc).Use(httputil.RateLimitMiddleware(limiter)).RegisterRoutes(router)

	send := func() int {
		req := httptest.NewRequest("POST", "/query", strings.NewReader(`{"user_id":"u1","input_text":"hi"}`))
		req.RemoteAddr = "198.51.100.4:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}
