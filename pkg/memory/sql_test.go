package memory

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/neuronote/pkg/usage"
)

func openSQLiteNotes(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open(usage.DialectSQLite, "file:"+filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLStore(db, usage.DialectSQLite)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLStore_SQLiteAddAndSearch(t *testing.T) {
	ctx := context.Background()
	store := openSQLiteNotes(t)

	_, err := store.Add(ctx, Note{UserID: "u1", Text: "release day checklist", CreatedAt: base})
	require.NoError(t, err)
	_, err = store.Add(ctx, Note{
		UserID:    "u1",
		Text:      "Draft the RELEASE notes",
		Metadata:  map[string]interface{}{"source": "interaction"},
		CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)
	_, err = store.Add(ctx, Note{UserID: "u2", Text: "grocery list", CreatedAt: base})
	require.NoError(t, err)

	results, err := store.Search(ctx, "release notes", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Draft the RELEASE notes", results[0].Text)
	assert.Equal(t, 0.0, results[0].Score)
	assert.Equal(t, "interaction", results[0].Metadata["source"])
	assert.Equal(t, "release day checklist", results[1].Text)

	_, err = store.Search(ctx, "", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSQLStore_PostgresAdd(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, usage.DialectPostgres)

	mock.ExpectExec(regexp.QuoteMeta(insertNoteQuery)).
		WithArgs("note-1", "u1", "hello", sql.NullString{String: `{"source":"interaction"}`, Valid: true}, base).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.Add(context.Background(), Note{
		ID:        "note-1",
		UserID:    "u1",
		Text:      "hello",
		Metadata:  map[string]interface{}{"source": "interaction"},
		CreatedAt: base,
	})
	require.NoError(t, err)
	assert.Equal(t, "note-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Errors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, usage.DialectPostgres)

	mock.ExpectExec("INSERT INTO memory_notes").WillReturnError(errors.New("disk full"))
	_, err = store.Add(context.Background(), Note{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store note")

	mock.ExpectQuery("SELECT id").WillReturnError(errors.New("relation does not exist"))
	_, err = store.Search(context.Background(), "hello", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to search notes")

	mock.ExpectQuery("SELECT id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "text", "metadata", "created_at"}).
			AddRow("n1", "u1", "hello", "{broken", base))
	_, err = store.Search(context.Background(), "hello", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt metadata")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_MigrateUnsupported(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, NewSQLStore(db, "mysql").Migrate(context.Background()))
}

func TestSearchQuery(t *testing.T) {
	query, args := searchQuery([]string{"release", "notes"})
	assert.Contains(t, query, "LOWER(text) LIKE $1 OR LOWER(text) LIKE $2")
	assert.Contains(t, query, "LIMIT 500")
	assert.Equal(t, []interface{}{"%release%", "%notes%"}, args)
}
