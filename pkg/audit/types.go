package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/neuronote/pkg/manifest"
)

var (
	// ErrTraceNotFound is returned when no trace exists for an ID
	ErrTraceNotFound = errors.New("trace not found")

	// ErrInvalidTraceID is returned for IDs that are not UUIDs
	ErrInvalidTraceID = errors.New("invalid trace id")
)

// PluginResult is the outcome of one plugin invocation during a query
type PluginResult struct {
	Plugin      string      `json:"plugin"`
	Description string      `json:"description,omitempty"`
	Input       string      `json:"input,omitempty"`
	Success     bool        `json:"success"`
	Output      interface{} `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Trace records a processed query and every plugin it ran
type Trace struct {
	ExecutedAt time.Time              `json:"executed_at"`
	UserID     string                 `json:"user_id,omitempty"`
	Input      string                 `json:"input"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Results    []PluginResult         `json:"results"`
}

// UnmarshalJSON accepts executed_at as an RFC 3339 string or as float unix
// seconds, the form orchestrators emit
func (t *Trace) UnmarshalJSON(data []byte) error {
	type plain Trace
	aux := struct {
		*plain
		ExecutedAt json.RawMessage `json:"executed_at"`
	}{plain: (*plain)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	at, err := manifest.ParseTimestamp(aux.ExecutedAt)
	if err != nil {
		return fmt.Errorf("invalid executed_at: %w", err)
	}
	t.ExecutedAt = at
	return nil
}

// Plugins returns the plugin names that appear in the trace results, in order
func (t *Trace) Plugins() []string {
	names := make([]string, 0, len(t.Results))
	for _, r := range t.Results {
		if r.Plugin != "" {
			names = append(names, r.Plugin)
		}
	}
	return names
}

// RetentionPolicy defines how long traces should be kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep traces. Zero or less keeps everything.
	RetentionDays int

	// ArchiveEnabled moves expired traces to ArchivePath instead of deleting them
	ArchiveEnabled bool

	// ArchivePath is where archived traces are stored
	ArchivePath string
}

// DefaultRetentionPolicy returns a default retention policy (90 days)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays: 90,
	}
}
