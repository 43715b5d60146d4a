package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps notes in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	notes []Note
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory note store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Add implements Store
func (m *MemoryStore) Add(ctx context.Context, note Note) (string, error) {
	if strings.TrimSpace(note.Text) == "" {
		return "", ErrEmptyText
	}
	note = prepare(note, m.now)

	m.mu.Lock()
	m.notes = append(m.notes, note)
	m.mu.Unlock()

	return note.ID, nil
}

// Search implements Store
func (m *MemoryStore) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}

	m.mu.RLock()
	notes := make([]Note, len(m.notes))
	copy(notes, m.notes)
	m.mu.RUnlock()

	return rank(notes, terms, NormalizeLimit(limit)), nil
}

// prepare fills the generated fields of a note and copies its metadata
func prepare(note Note, now func() time.Time) Note {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now().UTC()
	}
	if note.Metadata != nil {
		meta := make(map[string]interface{}, len(note.Metadata))
		for k, v := range note.Metadata {
			meta[k] = v
		}
		note.Metadata = meta
	}
	return note
}
