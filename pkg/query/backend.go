package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/neuronote/pkg/audit"
	"github.com/platinummonkey/neuronote/pkg/observability"
)

// Backend runs a query through the plugin orchestrator and returns the
// resulting trace
type Backend interface {
	Process(ctx context.Context, req Request) (*audit.Trace, error)
}

// BackendFunc adapts a function to the Backend interface
type BackendFunc func(ctx context.Context, req Request) (*audit.Trace, error)

// Process implements Backend
func (f BackendFunc) Process(ctx context.Context, req Request) (*audit.Trace, error) {
	return f(ctx, req)
}

// BackendConfig configures an HTTPBackend
type BackendConfig struct {
	URL          string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// DefaultBackendConfig returns the default orchestrator client settings
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		URL:          "http://localhost:8000/orchestrator/process",
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,
	}
}

// HTTPBackend posts queries to a remote orchestrator as JSON
type HTTPBackend struct {
	url    string
	client *retryablehttp.Client
}

// NewHTTPBackend creates a retrying orchestrator client
func NewHTTPBackend(cfg BackendConfig, logger *observability.Logger) (*HTTPBackend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("query backend URL is required")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		retryClient.HTTPClient.Timeout = cfg.Timeout
	}
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(retryClient.HTTPClient.Transport)

	if logger != nil {
		retryClient.Logger = retryLogger{logger.WithField("component", "query_backend")}
	} else {
		retryClient.Logger = nil
	}

	return &HTTPBackend{url: cfg.URL, client: retryClient}, nil
}

// Process implements Backend
func (b *HTTPBackend) Process(ctx context.Context, req Request) (*audit.Trace, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, b.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, string(snippet))
	}

	var trace audit.Trace
	if err := json.NewDecoder(resp.Body).Decode(&trace); err != nil {
		return nil, fmt.Errorf("%w: invalid trace: %v", ErrBackendUnavailable, err)
	}
	return &trace, nil
}

// retryLogger routes retryablehttp's leveled logs through the service logger
type retryLogger struct {
	logger *observability.Logger
}

func (l retryLogger) with(keysAndValues []interface{}) *observability.Logger {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.logger.WithFields(fields)
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Error(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Info(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Debug(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Warn(msg)
}
