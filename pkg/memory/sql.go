package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/platinummonkey/neuronote/pkg/usage"
)

// candidateLimit bounds how many matching rows one search scores
const candidateLimit = 500

const (
	insertNoteQuery = `INSERT INTO memory_notes (id, user_id, text, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)`

	selectNotesQuery = `SELECT id, user_id, text, metadata, created_at FROM memory_notes WHERE `
)

var noteMigrations = map[string][]string{
	usage.DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS memory_notes (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	metadata TEXT,
	created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_notes_created_at ON memory_notes (created_at)`,
	},
	usage.DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS memory_notes (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_notes_created_at ON memory_notes (created_at)`,
	},
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// SQLStore keeps notes in a memory_notes table. It shares the database of
// the usage store and does not own the connection.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// NewSQLStore wraps an open database. dialect is usage.DialectPostgres or
// usage.DialectSQLite.
func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

// Migrate creates the memory_notes table if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	ddl, ok := noteMigrations[s.dialect]
	if !ok {
		return fmt.Errorf("unsupported sql dialect %q", s.dialect)
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate memory_notes: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) rebind(query string) string {
	if s.dialect == usage.DialectPostgres {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

// Add implements Store
func (s *SQLStore) Add(ctx context.Context, note Note) (string, error) {
	if strings.TrimSpace(note.Text) == "" {
		return "", ErrEmptyText
	}
	note = prepare(note, s.now)

	var meta sql.NullString
	if len(note.Metadata) > 0 {
		data, err := json.Marshal(note.Metadata)
		if err != nil {
			return "", fmt.Errorf("failed to encode note metadata: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(insertNoteQuery),
		note.ID, note.UserID, note.Text, meta, note.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to store note: %w", err)
	}
	return note.ID, nil
}

// searchQuery selects the newest notes containing any of the terms
func searchQuery(terms []string) (string, []interface{}) {
	clauses := make([]string, len(terms))
	args := make([]interface{}, len(terms))
	for i, term := range terms {
		clauses[i] = fmt.Sprintf("LOWER(text) LIKE $%d", i+1)
		args[i] = "%" + term + "%"
	}
	query := selectNotesQuery + strings.Join(clauses, " OR ") +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", candidateLimit)
	return query, args
}

// Search implements Store
func (s *SQLStore) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}

	stmt, args := searchQuery(terms)
	rows, err := s.db.QueryContext(ctx, s.rebind(stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var (
			note Note
			meta sql.NullString
		)
		if err := rows.Scan(&note.ID, &note.UserID, &note.Text, &meta, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &note.Metadata); err != nil {
				return nil, fmt.Errorf("corrupt metadata for note %s: %w", note.ID, err)
			}
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	return rank(notes, terms, NormalizeLimit(limit)), nil
}
