// Package catalog serves aggregated plugin listings from a manifest source.
//
// # Overview
//
// A Service loads raw records from a Source (local file or S3 object),
// overlays persisted usage counters from a usage.Store and runs the manifest
// aggregator. Results are memoized in an expirable LRU keyed by a SHA-256 of
// the merged input and the sort key, so any manifest or usage change produces
// a fresh aggregation. The cache TTL bounds how stale the recently-used flag
// can become.
//
// FileSource.Watch uses fsnotify to reload the manifest when it changes on
// disk; pair it with Service.Invalidate to drop cached results.
//
// # Usage Example
//
//	source := catalog.NewFileSource("plugins.json", logger)
//	svc := catalog.NewService(source, usageStore, catalog.Options{
//		Metrics: metrics,
//		Logger:  logger,
//	})
//
//	go source.Watch(ctx, func(err error) { svc.Invalidate() })
//
//	result, err := svc.List(ctx, manifest.SortByUsage)
//
// # Related Packages
//
//   - pkg/manifest: Aggregation core
//   - pkg/usage: Usage counter stores
//   - pkg/api: HTTP handlers for GET /plugins
package catalog
