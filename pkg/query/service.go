package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/neuronote/pkg/audit"
	"github.com/platinummonkey/neuronote/pkg/memory"
	"github.com/platinummonkey/neuronote/pkg/observability"
	"github.com/platinummonkey/neuronote/pkg/usage"
)

// Service submits queries to the orchestrator, persists their traces and
// records plugin usage
type Service struct {
	backend Backend
	traces  audit.Store
	usage   usage.Store
	memory  memory.Store
	metrics *observability.Metrics
	logger  *observability.Logger
	now     func() time.Time
}

// NewService creates a query service. usageStore and metrics may be nil.
func NewService(backend Backend, traces audit.Store, usageStore usage.Store, metrics *observability.Metrics, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		backend: backend,
		traces:  traces,
		usage:   usageStore,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithMemory stores every processed query as a searchable note
func (s *Service) WithMemory(store memory.Store) *Service {
	s.memory = store
	return s
}

// Submit processes one query and returns the stored trace ID with the
// plugin results
func (s *Service) Submit(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := s.now()
	trace, err := s.backend.Process(ctx, req)
	s.metrics.ObserveQuery(s.now().Sub(start), err)
	if err != nil {
		return nil, err
	}
	if trace == nil {
		trace = &audit.Trace{}
	}

	if trace.ExecutedAt.IsZero() {
		trace.ExecutedAt = start.UTC()
	}
	if trace.Input == "" {
		trace.Input = req.InputText
	}
	if trace.UserID == "" {
		trace.UserID = req.UserID
	}
	if trace.Context == nil && len(req.Context) > 0 {
		trace.Context = req.Context
	}
	if trace.Results == nil {
		trace.Results = []audit.PluginResult{}
	}

	traceID, err := s.traces.Save(ctx, trace)
	if err != nil {
		return nil, fmt.Errorf("failed to persist trace: %w", err)
	}

	s.recordUsage(ctx, traceID, trace)
	s.logInteraction(ctx, traceID, trace)

	s.logger.WithFields(map[string]interface{}{
		"trace_id": traceID,
		"user_id":  req.UserID,
		"plugins":  len(trace.Results),
	}).Info("query processed")

	return &Response{TraceID: traceID, Results: trace.Results}, nil
}

// recordUsage counts one invocation per plugin result. Failures are logged
// and do not fail the query.
func (s *Service) recordUsage(ctx context.Context, traceID string, trace *audit.Trace) {
	if s.usage == nil {
		return
	}
	for _, name := range trace.Plugins() {
		if err := s.usage.Record(ctx, name, trace.ExecutedAt); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"trace_id": traceID,
				"plugin":   name,
			}).Warn("failed to record plugin usage")
		}
	}
}

// logInteraction stores the input and the plugin outputs as one memory note.
// Failures are logged and do not fail the query.
func (s *Service) logInteraction(ctx context.Context, traceID string, trace *audit.Trace) {
	if s.memory == nil {
		return
	}
	note := memory.Note{
		UserID: trace.UserID,
		Text:   trace.Input + "\n\n" + renderOutputs(trace.Results),
		Metadata: map[string]interface{}{
			"source":   "interaction",
			"trace_id": traceID,
		},
		CreatedAt: trace.ExecutedAt,
	}
	if _, err := s.memory.Add(ctx, note); err != nil {
		s.logger.WithError(err).WithField("trace_id", traceID).Warn("failed to log interaction")
	}
}

// renderOutputs joins the successful plugin outputs, one per line
func renderOutputs(results []audit.PluginResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if !r.Success || r.Output == nil {
			continue
		}
		switch out := r.Output.(type) {
		case string:
			lines = append(lines, out)
		default:
			data, err := json.Marshal(out)
			if err != nil {
				continue
			}
			lines = append(lines, string(data))
		}
	}
	return strings.Join(lines, "\n")
}
