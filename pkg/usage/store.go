package usage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/neuronote/pkg/manifest"
)

// ErrEmptyName is returned when recording usage for a blank plugin name
var ErrEmptyName = errors.New("plugin name is required")

// Stat is the persisted usage of one plugin
type Stat struct {
	Name     string     `json:"name"`
	Count    int64      `json:"count"`
	LastUsed *time.Time `json:"last_used,omitempty"`
}

// Store persists plugin invocation counters
type Store interface {
	// Record counts one invocation of name at the given time
	Record(ctx context.Context, name string, at time.Time) error
	// Snapshot returns the current counters keyed by plugin name
	Snapshot(ctx context.Context) (map[string]Stat, error)
	// Close releases backend resources
	Close() error
}

// Overlay returns a copy of records with usage and last-used values replaced
// by the stored counters. Records without a stored counter keep the values
// from the manifest. The input slice is not modified.
func Overlay(records []manifest.PluginRecord, stats map[string]Stat) []manifest.PluginRecord {
	out := make([]manifest.PluginRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
		stat, ok := stats[r.Name]
		if !ok {
			continue
		}
		out[i].Usage = stat.Count
		if stat.LastUsed != nil {
			t := *stat.LastUsed
			out[i].LastUsed = &t
		}
	}
	return out
}

// Sorted returns stats ordered by count descending then name
func Sorted(stats map[string]Stat) []Stat {
	out := make([]Stat, 0, len(stats))
	for _, s := range stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return nil
}

// MemoryStore keeps counters in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	stats map[string]Stat
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stats: make(map[string]Stat)}
}

// Record implements Store
func (m *MemoryStore) Record(ctx context.Context, name string, at time.Time) error {
	if err := validateName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stat := m.stats[name]
	stat.Name = name
	stat.Count++
	if stat.LastUsed == nil || at.After(*stat.LastUsed) {
		t := at
		stat.LastUsed = &t
	}
	m.stats[name] = stat
	return nil
}

// Snapshot implements Store
func (m *MemoryStore) Snapshot(ctx context.Context) (map[string]Stat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stat, len(m.stats))
	for k, v := range m.stats {
		if v.LastUsed != nil {
			t := *v.LastUsed
			v.LastUsed = &t
		}
		out[k] = v
	}
	return out, nil
}

// Close implements Store
func (m *MemoryStore) Close() error {
	return nil
}
