// Package usage persists plugin invocation counters.
//
// # Overview
//
// A Store counts invocations per plugin name and remembers the latest
// invocation time. The catalog overlays a Snapshot onto manifest records
// before aggregation so usage ratios and the recently-used flag reflect real
// invocations rather than the static manifest values.
//
// Backends:
//
//   - MemoryStore: process local, lost on restart
//   - RedisStore: two hashes (count and last-used nanoseconds)
//   - SQLStore: a plugin_usage table on PostgreSQL or SQLite
//
// # Usage Example
//
//	store, err := usage.OpenSQLStore(ctx, usage.SQLConfig{
//		Driver: usage.DialectSQLite,
//		DSN:    "file:usage.db",
//	})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	_ = store.Record(ctx, "memory_search", time.Now())
//	stats, _ := store.Snapshot(ctx)
//	records = usage.Overlay(records, stats)
//
// # Related Packages
//
//   - pkg/catalog: Applies usage snapshots before aggregation
//   - pkg/query: Records usage for each plugin result
package usage
