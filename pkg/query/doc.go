// Package query forwards user queries to the plugin orchestrator.
//
// # Overview
//
// POST /query accepts `{user_id, input_text, context}`. The Service hands the
// request to a Backend, stores the returned trace in an audit.Store and
// records one usage event per plugin result, so the plugin listing reflects
// real invocations. With WithMemory set, the input and the plugin outputs
// are also stored as a searchable note. The response is `{trace_id, results}`.
//
// HTTPBackend talks to a remote orchestrator over JSON with retries and
// exponential backoff (hashicorp/go-retryablehttp). Connection failures and
// non-2xx answers surface as ErrBackendUnavailable and map to 502.
//
// # Usage Example
//
//	backend, err := query.NewHTTPBackend(query.DefaultBackendConfig(), logger)
//	if err != nil {
//		return err
//	}
//	svc := query.NewService(backend, traceStore, usageStore, metrics, logger).
//		WithMemory(noteStore)
//	query.NewHandlers(svc).RegisterRoutes(router)
//
// # Related Packages
//
//   - pkg/audit: Trace persistence
//   - pkg/usage: Usage counters
//   - pkg/memory: Interaction notes
package query
