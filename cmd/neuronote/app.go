package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/neuronote/pkg/api"
	"github.com/platinummonkey/neuronote/pkg/audit"
	"github.com/platinummonkey/neuronote/pkg/catalog"
	"github.com/platinummonkey/neuronote/pkg/config"
	"github.com/platinummonkey/neuronote/pkg/httputil"
	"github.com/platinummonkey/neuronote/pkg/memory"
	"github.com/platinummonkey/neuronote/pkg/observability"
	"github.com/platinummonkey/neuronote/pkg/query"
	"github.com/platinummonkey/neuronote/pkg/usage"
)

// usageBackend is an opened usage store plus the connections the health
// checker should probe
type usageBackend struct {
	store   usage.Store
	db      *sql.DB
	dialect string
	redis   *redis.Client
}

// startupCleanup releases what run has opened when it returns before the
// shutdown manager takes over. Funcs run in reverse order of registration.
type startupCleanup struct {
	funcs     []func(ctx context.Context) error
	handedOff bool
}

func (c *startupCleanup) add(fn func(ctx context.Context) error) {
	c.funcs = append(c.funcs, fn)
}

// handOff marks the resources as owned by the shutdown manager
func (c *startupCleanup) handOff() {
	c.handedOff = true
}

func (c *startupCleanup) release(ctx context.Context, logger *observability.Logger) {
	if c.handedOff {
		return
	}
	for i := len(c.funcs) - 1; i >= 0; i-- {
		if err := c.funcs[i](ctx); err != nil {
			logger.WithError(err).Warn("Startup cleanup failed")
		}
	}
	c.funcs = nil
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.WithField("version", version).Info("Starting neuronote")

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}

	var cleanup startupCleanup
	defer func() {
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer releaseCancel()
		cleanup.release(releaseCtx, logger)
	}()
	cleanup.add(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	backend, err := openUsageBackend(ctx, cfg.Usage, metrics)
	if err != nil {
		return err
	}
	cleanup.add(func(ctx context.Context) error {
		return backend.store.Close()
	})

	notes, err := openMemoryStore(ctx, backend)
	if err != nil {
		return err
	}

	source, err := newSource(ctx, cfg.Manifest, logger)
	if err != nil {
		return err
	}

	catalogSvc := catalog.NewService(source, backend.store, catalog.Options{
		CacheSize:     cfg.Manifest.CacheSize,
		CacheTTL:      cfg.Manifest.CacheTTL,
		RecencyWindow: cfg.Manifest.RecencyWindow,
		Metrics:       metrics,
		Logger:        logger,
	})

	traces, err := audit.NewFileStore(cfg.Traces.Dir)
	if err != nil {
		return err
	}

	var (
		querySvc     *query.Service
		queryLimiter *httputil.RateLimiter
	)
	if cfg.Query.Enabled() {
		qb, err := query.NewHTTPBackend(cfg.Query.Backend, logger)
		if err != nil {
			return err
		}
		querySvc = query.NewService(qb, traces, backend.store, metrics, logger).WithMemory(notes)
		if cfg.Query.RateLimit.Enabled() {
			queryLimiter = httputil.NewRateLimiter(cfg.Query.RateLimit)
			queryLimiter.StartCleanup(ctx)
		}
	} else {
		logger.Warn("No query backend configured, POST /query disabled")
	}

	apiServer := api.NewServer(api.Options{
		Catalog:      catalogSvc,
		Traces:       traces,
		Query:        querySvc,
		Memory:       notes,
		Logger:       logger,
		Metrics:      metrics,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		QueryLimiter: queryLimiter,
	})

	health := observability.NewHealthChecker(backend.db, backend.redis)
	health.SetVersion(version)
	health.AddCheck("manifest", catalogSvc.Check, true)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler, err := scheduleTraceCleanup(cfg.Traces, traces, metrics, logger)
	if err != nil {
		return err
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.AddServer("api", httpServer)
	shutdown.AddServer("health", healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		cancel()
		if scheduler != nil {
			select {
			case <-scheduler.Stop().Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return backend.store.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	cleanup.handOff()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("API server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	if fileSource, ok := source.(*catalog.FileSource); ok && cfg.Manifest.Watch {
		g.Go(func() error {
			return fileSource.Watch(gctx, func(err error) {
				metrics.ObserveReload(fileSource.Name(), err)
				if err == nil {
					catalogSvc.Invalidate()
				}
			})
		})
	}

	if scheduler != nil {
		scheduler.Start()
	}

	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

// openUsageBackend opens the configured usage store wrapped with metrics
func openUsageBackend(ctx context.Context, cfg config.UsageConfig, metrics *observability.Metrics) (*usageBackend, error) {
	var b usageBackend

	switch cfg.Backend {
	case config.UsageMemory:
		b.store = usage.NewMemoryStore()
	case config.UsageRedis:
		store, err := usage.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		b.store = store
		b.redis = store.Client()
	case config.UsagePostgres, config.UsageSQLite:
		store, err := usage.OpenSQLStore(ctx, cfg.SQL)
		if err != nil {
			return nil, err
		}
		b.store = store
		b.db = store.DB()
		b.dialect = cfg.SQL.Driver
	default:
		return nil, fmt.Errorf("unsupported usage backend: %s", cfg.Backend)
	}

	b.store = usage.WithMetrics(b.store, cfg.Backend, metrics)
	return &b, nil
}

// openMemoryStore keeps interaction notes next to the usage counters when
// those live in SQL, and in process otherwise
func openMemoryStore(ctx context.Context, backend *usageBackend) (memory.Store, error) {
	if backend.db == nil {
		return memory.NewMemoryStore(), nil
	}
	store := memory.NewSQLStore(backend.db, backend.dialect)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// newSource builds the manifest source selected by the configuration
func newSource(ctx context.Context, cfg config.ManifestConfig, logger *observability.Logger) (catalog.Source, error) {
	switch cfg.Source {
	case config.SourceFile:
		return catalog.NewFileSource(cfg.Path, logger), nil
	case config.SourceS3:
		return catalog.NewS3Source(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported manifest source: %s", cfg.Source)
	}
}

// scheduleTraceCleanup registers the retention job. It returns nil when no
// schedule is configured or retention is unlimited.
func scheduleTraceCleanup(cfg config.TracesConfig, store audit.Store, metrics *observability.Metrics, logger *observability.Logger) (*cron.Cron, error) {
	if cfg.CleanupSchedule == "" || cfg.Retention.RetentionDays <= 0 {
		return nil, nil
	}

	c := cron.New(cron.WithLogger(cron.PrintfLogger(logger)))
	_, err := c.AddFunc(cfg.CleanupSchedule, func() {
		cleanupTraces(context.Background(), store, cfg.Retention, metrics, logger)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule trace cleanup: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"schedule":       cfg.CleanupSchedule,
		"retention_days": cfg.Retention.RetentionDays,
	}).Info("Trace cleanup scheduled")
	return c, nil
}

func cleanupTraces(ctx context.Context, store audit.Store, policy audit.RetentionPolicy, metrics *observability.Metrics, logger *observability.Logger) int64 {
	removed, err := store.Cleanup(ctx, policy)
	metrics.ObserveTraceCleanup(removed)
	if err != nil {
		logger.WithError(err).Error("Trace cleanup failed")
		return removed
	}
	logger.WithField("removed", removed).Info("Trace cleanup completed")
	return removed
}
