package usage

import (
	"context"
	"time"

	"github.com/platinummonkey/neuronote/pkg/observability"
)

// InstrumentedStore records Prometheus metrics around another Store
type InstrumentedStore struct {
	next    Store
	backend string
	metrics *observability.Metrics
}

// WithMetrics wraps store so each operation is counted under backend
func WithMetrics(store Store, backend string, metrics *observability.Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: store, backend: backend, metrics: metrics}
}

// Record implements Store
func (s *InstrumentedStore) Record(ctx context.Context, name string, at time.Time) error {
	err := s.next.Record(ctx, name, at)
	s.metrics.ObserveUsageOp("record", s.backend, err)
	return err
}

// Snapshot implements Store
func (s *InstrumentedStore) Snapshot(ctx context.Context) (map[string]Stat, error) {
	stats, err := s.next.Snapshot(ctx)
	s.metrics.ObserveUsageOp("snapshot", s.backend, err)
	return stats, err
}

// Close implements Store
func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
