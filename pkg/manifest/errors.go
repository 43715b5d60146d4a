package manifest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSortKey is returned for a sort key outside byName, byUsage and byRecent
	ErrInvalidSortKey = errors.New("invalid sort key")

	// ErrMissingRequiredField is returned when a record has no name
	ErrMissingRequiredField = errors.New("missing required field")
)

// RecordError identifies the record that failed validation
type RecordError struct {
	Index int
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// ParseSortKey converts a sort key or a short sort hint (name, usage, recent)
// into a SortKey. An empty string selects SortByName.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.TrimSpace(s) {
	case "", "name", string(SortByName):
		return SortByName, nil
	case "usage", string(SortByUsage):
		return SortByUsage, nil
	case "recent", string(SortByRecent):
		return SortByRecent, nil
	default:
		return "", fmt.Errorf("%w: %q (must be name, usage or recent)", ErrInvalidSortKey, s)
	}
}

// Validate checks that every record carries a name
func Validate(records []PluginRecord) error {
	for i, record := range records {
		if strings.TrimSpace(record.Name) == "" {
			return &RecordError{Index: i, Field: "name", Err: ErrMissingRequiredField}
		}
	}
	return nil
}
