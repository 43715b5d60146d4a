package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"release", "notes", "v2"}, Terms("Release notes, release NOTES for v2!"))
	assert.Empty(t, Terms("  ... "))
}

func TestDistance(t *testing.T) {
	terms := Terms("release notes")
	assert.Equal(t, 0.0, Distance(terms, "Drafted the release notes"))
	assert.Equal(t, 0.5, Distance(terms, "release day"))
	assert.Equal(t, 1.0, Distance(terms, "nothing relevant"))
	assert.Equal(t, 1.0, Distance(nil, "release"))
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultSearchLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultSearchLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxSearchLimit, NormalizeLimit(1000))
}

func TestMemoryStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tick := base
	store.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	_, err := store.Add(ctx, Note{UserID: "u1", Text: "release day checklist"})
	require.NoError(t, err)
	_, err = store.Add(ctx, Note{UserID: "u1", Text: "draft the release notes", Metadata: map[string]interface{}{"source": "interaction"}})
	require.NoError(t, err)
	_, err = store.Add(ctx, Note{UserID: "u2", Text: "grocery list"})
	require.NoError(t, err)
	id, err := store.Add(ctx, Note{UserID: "u1", Text: "release party"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	results, err := store.Search(ctx, "release notes", 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "draft the release notes", results[0].Text)
	assert.Equal(t, 0.0, results[0].Score)
	assert.Equal(t, "interaction", results[0].Metadata["source"])

	// equal scores: newest first
	assert.Equal(t, "release party", results[1].Text)
	assert.Equal(t, "release day checklist", results[2].Text)
	assert.Equal(t, 0.5, results[1].Score)
	assert.NotNil(t, results[2].Metadata)

	limited, err := store.Search(ctx, "release", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Add(ctx, Note{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = store.Search(ctx, "?!", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	results, err := store.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStore_CopiesMetadata(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	meta := map[string]interface{}{"source": "interaction"}
	_, err := store.Add(ctx, Note{Text: "remember this", Metadata: meta})
	require.NoError(t, err)
	meta["source"] = "changed"

	results, err := store.Search(ctx, "remember", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "interaction", results[0].Metadata["source"])
}
