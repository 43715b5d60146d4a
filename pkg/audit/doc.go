// Package audit stores the execution trace of every processed query.
//
// # Overview
//
// A Trace records the query input and one PluginResult per plugin the
// orchestrator ran. Traces are saved under a generated UUID and served by
// GET /audit/{traceId}, which answers 404 when the ID is unknown.
//
// FileStore writes one `<id>.json` document per trace and expires old
// documents by modification time, optionally moving them to an archive
// directory. MemoryStore is used by tests and ephemeral deployments.
//
// # Usage Example
//
//	store, err := audit.NewFileStore("/var/lib/neuronote/traces")
//	if err != nil {
//		return err
//	}
//
//	id, err := store.Save(ctx, &audit.Trace{Input: "summarize my notes"})
//	trace, err := store.Get(ctx, id)
//
//	removed, err := store.Cleanup(ctx, audit.DefaultRetentionPolicy())
//
//	audit.NewHandlers(store).RegisterRoutes(router)
//
// # Related Packages
//
//   - pkg/query: Saves a trace for each submitted query
//   - pkg/httputil: JSON error responses
package audit
