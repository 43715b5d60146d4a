package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/neuronote/pkg/audit"
	"github.com/platinummonkey/neuronote/pkg/catalog"
	"github.com/platinummonkey/neuronote/pkg/httputil"
	"github.com/platinummonkey/neuronote/pkg/memory"
	"github.com/platinummonkey/neuronote/pkg/observability"
	"github.com/platinummonkey/neuronote/pkg/query"
)

// DefaultMaxBodyBytes caps request bodies on the API router
const DefaultMaxBodyBytes = 1 << 20

// Options configures the API server. Traces, Query and Memory are optional;
// their routes are only registered when set.
type Options struct {
	Catalog      *catalog.Service
	Traces       audit.Store
	Query        *query.Service
	Memory       memory.Store
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	CORSOrigins  []string
	MaxBodyBytes int64
	// QueryLimiter throttles POST /query per client when set
	QueryLimiter *httputil.RateLimiter
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	catalog *catalog.Service
	logger  *observability.Logger
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:  mux.NewRouter(),
		catalog: opts.Catalog,
		logger:  logger,
	}

	maxBytes := opts.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	// Outermost first: recovery must see panics from every other layer
	s.router.Use(
		observability.RecoveryMiddleware(logger),
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		httputil.CORSMiddleware(opts.CORSOrigins),
		httputil.MaxBytesMiddleware(maxBytes),
	)
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	s.setupRoutes()

	if opts.Traces != nil {
		s.RegisterRoutes(audit.NewHandlers(opts.Traces))
	}
	if opts.Query != nil {
		handlers := query.NewHandlers(opts.Query)
		if opts.QueryLimiter != nil {
			handlers.Use(httputil.RateLimitMiddleware(opts.QueryLimiter))
		}
		s.RegisterRoutes(handlers)
	}
	if opts.Memory != nil {
		s.RegisterRoutes(memory.NewHandlers(opts.Memory))
	}

	// mux only runs middleware on matched routes; CORS preflights need a match
	s.router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return s
}

// setupRoutes configures the plugin listing routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/plugins", s.listPlugins).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the server wrapped with OpenTelemetry HTTP instrumentation
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s, "neuronote.api",
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}
