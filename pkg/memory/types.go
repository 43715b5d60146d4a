package memory

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultSearchLimit is used when a search does not set a limit
	DefaultSearchLimit = 5

	// MaxSearchLimit caps the number of results of one search
	MaxSearchLimit = 50
)

var (
	// ErrEmptyText is returned when storing a note without text
	ErrEmptyText = errors.New("note text is required")

	// ErrEmptyQuery is returned when a search query has no searchable terms
	ErrEmptyQuery = errors.New("search query is required")
)

// Note is one remembered piece of text
type Note struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id,omitempty"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Result is one search hit. Score is a distance: 0 matches every query term,
// values closer to 1 match fewer.
type Result struct {
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Store persists notes and searches them by text
type Store interface {
	// Add stores a note and returns its ID
	Add(ctx context.Context, note Note) (string, error)

	// Search returns up to limit notes ordered by ascending score
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// NormalizeLimit applies the default and the upper bound to a search limit
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}
