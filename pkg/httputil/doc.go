// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// Helpers for JSON responses with `{"error": "..."}` bodies, request parsing
// on gorilla/mux routes, and the middleware shared by the API server.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "invalid sort_by")
//	httputil.WriteNotFoundError(w, "Trace not found")
//	httputil.WriteBadGateway(w, "orchestrator unavailable")
//
// # Request Parsing
//
//	var req query.Request
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	traceID, ok := httputil.ParsePathStringOrError(w, r, "traceId")
//	sortBy := httputil.ParseQueryString(r, "sort_by", "name")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.CORSMiddleware([]string{"*"}),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Rate Limiting
//
// RateLimiter is an in-memory token bucket per client address:
//
//	limiter := httputil.NewRateLimiter(httputil.RateLimitConfig{
//		RequestsPerWindow: 60,
//		WindowDuration:    time.Minute,
//		BurstSize:         10,
//	})
//	limiter.StartCleanup(ctx)
//	router.Use(httputil.RateLimitMiddleware(limiter))
//
// # Related Packages
//
//   - pkg/observability: Request scoped loggers and metrics middleware
package httputil
