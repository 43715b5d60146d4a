// Package memory remembers past interactions and searches them by text.
//
// # Overview
//
// Every processed query is stored as a Note holding the user input and the
// plugin outputs. POST /memory/search returns the notes that best match a
// query as {"results": [{"text", "score", "metadata"}]}. Score is a distance:
// 0 means every query term was found, and results are ordered by ascending
// score with newer notes first on ties. Notes matching no term are omitted.
//
// SQLStore keeps notes in a memory_notes table next to the usage counters
// (Postgres or SQLite). MemoryStore keeps them in process.
//
// # Usage Example
//
//	store := memory.NewSQLStore(db, usage.DialectSQLite)
//	if err := store.Migrate(ctx); err != nil {
//		return err
//	}
//
//	id, err := store.Add(ctx, memory.Note{UserID: "u1", Text: "draft the release notes"})
//	results, err := store.Search(ctx, "release notes", memory.DefaultSearchLimit)
//
//	memory.NewHandlers(store).RegisterRoutes(router)
//
// # Related Packages
//
//   - pkg/query: Stores one note per submitted query
//   - pkg/usage: Owns the shared SQL connection
package memory
