package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/neuronote/pkg/manifest"
	"github.com/platinummonkey/neuronote/pkg/observability"
	"github.com/platinummonkey/neuronote/pkg/usage"
)

const (
	// DefaultCacheSize is the number of aggregation results kept
	DefaultCacheSize = 64
	// DefaultCacheTTL bounds how stale a cached recently-used flag can be
	DefaultCacheTTL = 5 * time.Second
)

// Options configures a Service
type Options struct {
	CacheSize int
	// CacheTTL of zero uses DefaultCacheTTL, a negative value disables caching
	CacheTTL      time.Duration
	Clock         func() time.Time
	RecencyWindow time.Duration
	Metrics       *observability.Metrics
	Logger        *observability.Logger
}

// Service serves aggregated plugin listings. It merges the manifest source
// with persisted usage counters and memoizes aggregation results.
type Service struct {
	source     Source
	usage      usage.Store
	aggregator *manifest.Aggregator
	cache      *lru.LRU[string, *manifest.GroupedResult]
	metrics    *observability.Metrics
	logger     *observability.Logger
}

// NewService creates a catalog service. store may be nil when usage comes
// only from the manifest.
func NewService(source Source, store usage.Store, opts Options) *Service {
	aggOpts := []manifest.Option{}
	if opts.Clock != nil {
		aggOpts = append(aggOpts, manifest.WithClock(opts.Clock))
	}
	if opts.RecencyWindow > 0 {
		aggOpts = append(aggOpts, manifest.WithRecencyWindow(opts.RecencyWindow))
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Service{
		source:     source,
		usage:      store,
		aggregator: manifest.NewAggregator(aggOpts...),
		metrics:    opts.Metrics,
		logger:     logger,
	}

	if opts.CacheTTL >= 0 {
		size := opts.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		ttl := opts.CacheTTL
		if ttl == 0 {
			ttl = DefaultCacheTTL
		}
		s.cache = lru.NewLRU[string, *manifest.GroupedResult](size, nil, ttl)
	}

	return s
}

// Records returns the manifest records with usage counters applied
func (s *Service) Records(ctx context.Context) ([]manifest.PluginRecord, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	var (
		records []manifest.PluginRecord
		stats   map[string]usage.Stat
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.source.Load(gctx)
		if err != nil {
			return fmt.Errorf("failed to load manifest from %s: %w", s.source.Name(), err)
		}
		return nil
	})
	if s.usage != nil {
		g.Go(func() error {
			var err error
			stats, err = s.usage.Snapshot(gctx)
			if err != nil {
				// manifest values still produce a usable listing
				observability.FromContext(ctx).WithError(err).Warn("Usage snapshot failed, using manifest usage")
				stats = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if stats == nil {
		return records, nil
	}
	return usage.Overlay(records, stats), nil
}

// List aggregates the current manifest. Results may be shared between
// callers through the cache and must be treated as read-only.
func (s *Service) List(ctx context.Context, sortBy manifest.SortKey) (*manifest.GroupedResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "catalog.List",
		trace.WithAttributes(attribute.String("catalog.sort_by", string(sortBy))),
	)
	defer span.End()

	if !sortBy.IsValid() {
		err := fmt.Errorf("%w: %q", manifest.ErrInvalidSortKey, sortBy)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid sort key")
		return nil, err
	}

	records, err := s.Records(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load records")
		return nil, err
	}

	key, err := cacheKey(records, sortBy)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.metrics.ObserveCache(true)
			span.SetAttributes(attribute.Bool("catalog.cache_hit", true))
			return cached, nil
		}
		s.metrics.ObserveCache(false)
	}

	start := time.Now()
	result, err := s.aggregator.Aggregate(records, sortBy)
	if err != nil {
		s.metrics.ObserveAggregation(string(sortBy), time.Since(start), 0, 0, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		return nil, err
	}
	s.metrics.ObserveAggregation(string(sortBy), time.Since(start), result.Total(), result.Len(), nil)

	span.SetAttributes(
		attribute.Int("catalog.plugins", result.Total()),
		attribute.Int("catalog.categories", result.Len()),
	)

	if s.cache != nil {
		s.cache.Add(key, result)
	}
	return result, nil
}

// Invalidate drops all cached aggregation results
func (s *Service) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Check verifies the manifest source can be loaded
func (s *Service) Check(ctx context.Context) error {
	if s.source == nil {
		return ErrNoSource
	}
	if checker, ok := s.source.(interface{ Check(context.Context) error }); ok {
		return checker.Check(ctx)
	}
	_, err := s.source.Load(ctx)
	return err
}

// cacheKey hashes the merged input and sort key so any input change yields a new key
func cacheKey(records []manifest.PluginRecord, sortBy manifest.SortKey) (string, error) {
	h := sha256.New()
	if err := json.NewEncoder(h).Encode(records); err != nil {
		return "", fmt.Errorf("failed to hash records: %w", err)
	}
	h.Write([]byte(sortBy))
	return hex.EncodeToString(h.Sum(nil)), nil
}
