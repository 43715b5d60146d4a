// Package api provides the HTTP REST API server for the neuronote plugin catalog.
//
// # Overview
//
// The server exposes the grouped plugin listing together with the query and
// trace routes. It is built on gorilla/mux; every matched route runs through
// panic recovery, request IDs, access logging, CORS, a request body limit
// and (when configured) Prometheus metrics. Handler() additionally wraps the
// router with OpenTelemetry HTTP instrumentation.
//
// # API Endpoints
//
//	GET  /plugins?sort_by=name|usage|recent   Grouped, enriched plugin listing
//	GET  /audit/{traceId}                     Stored query trace
//	POST /query                               Submit a query to the orchestrator
//	POST /memory/search                       Search past interactions
//
// GET /plugins answers:
//
//	{
//	  "sort_by": "byUsage",
//	  "total": 3,
//	  "categories": [
//	    {"category": "memory", "plugins": [{"name": "memory/search", "usage_ratio": 1, ...}]}
//	  ]
//	}
//
// An unknown sort_by is a 400. A manifest record without a name makes the
// whole listing fail with 422.
//
// # Usage Example
//
//	server := api.NewServer(api.Options{
//		Catalog:     catalogService,
//		Traces:      traceStore,
//		Query:       queryService,
//		Memory:      noteStore,
//		Logger:      logger,
//		Metrics:     metrics,
//		CORSOrigins: []string{"*"},
//	})
//	http.ListenAndServe(":8080", server.Handler())
//
// # Related Packages
//
//   - pkg/catalog: Manifest loading and aggregation cache
//   - pkg/audit: Trace handlers
//   - pkg/query: Query handlers
//   - pkg/memory: Memory search handlers
//   - pkg/httputil: Middleware and JSON responses
package api
