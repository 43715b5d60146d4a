package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists query traces
type Store interface {
	// Save stores a trace and returns its new ID
	Save(ctx context.Context, trace *Trace) (string, error)

	// Get retrieves a trace by ID
	Get(ctx context.Context, id string) (*Trace, error)

	// Cleanup removes traces older than the retention period
	Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// ParseTraceID validates and normalizes a trace ID
func ParseTraceID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTraceID, id)
	}
	return parsed.String(), nil
}

// FileStore keeps one JSON document per trace in a directory
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates the trace directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Dir returns the trace directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save implements Store. The file is written to a temporary name and
// renamed so readers never observe a partial trace.
func (s *FileStore) Save(ctx context.Context, trace *Trace) (string, error) {
	if trace == nil {
		return "", errors.New("trace is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if trace.ExecutedAt.IsZero() {
		trace.ExecutedAt = s.now().UTC()
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}

	id := uuid.New().String()
	tmp, err := os.CreateTemp(s.dir, ".trace-*")
	if err != nil {
		return "", fmt.Errorf("failed to create trace file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write trace: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write trace: %w", err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to store trace: %w", err)
	}

	return id, nil
}

// Get implements Store
func (s *FileStore) Get(ctx context.Context, id string) (*Trace, error) {
	id, err := ParseTraceID(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	var trace Trace
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, fmt.Errorf("failed to parse trace %s: %w", id, err)
	}
	return &trace, nil
}

// Cleanup implements Store. Age is taken from the file modification time.
func (s *FileStore) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	if policy.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -policy.RetentionDays)

	if policy.ArchiveEnabled {
		if policy.ArchivePath == "" {
			return 0, errors.New("archive path is required when archiving is enabled")
		}
		if err := os.MkdirAll(policy.ArchivePath, 0755); err != nil {
			return 0, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list traces: %w", err)
	}

	var removed int64
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		src := filepath.Join(s.dir, entry.Name())
		if policy.ArchiveEnabled {
			err = os.Rename(src, filepath.Join(policy.ArchivePath, entry.Name()))
		} else {
			err = os.Remove(src)
		}
		if err != nil {
			return removed, fmt.Errorf("failed to expire trace %s: %w", entry.Name(), err)
		}
		removed++
	}

	return removed, nil
}

// MemoryStore keeps traces in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	traces map[string]storedTrace
	now    func() time.Time
}

type storedTrace struct {
	trace   Trace
	savedAt time.Time
}

// NewMemoryStore creates an empty in-memory trace store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		traces: make(map[string]storedTrace),
		now:    time.Now,
	}
}

// Save implements Store
func (s *MemoryStore) Save(ctx context.Context, trace *Trace) (string, error) {
	if trace == nil {
		return "", errors.New("trace is required")
	}
	now := s.now()
	if trace.ExecutedAt.IsZero() {
		trace.ExecutedAt = now.UTC()
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.traces[id] = storedTrace{trace: *trace, savedAt: now}
	s.mu.Unlock()
	return id, nil
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, id string) (*Trace, error) {
	id, err := ParseTraceID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	stored, ok := s.traces[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTraceNotFound
	}
	trace := stored.trace
	return &trace, nil
}

// Cleanup implements Store. Archiving is not supported in memory.
func (s *MemoryStore) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	if policy.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -policy.RetentionDays)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, stored := range s.traces {
		if stored.savedAt.Before(cutoff) {
			delete(s.traces, id)
			removed++
		}
	}
	return removed, nil
}
