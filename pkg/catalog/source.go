package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/neuronote/pkg/manifest"
	"github.com/platinummonkey/neuronote/pkg/observability"
)

// DefaultWatchDebounce is how long Watch waits after the last change event
// before reloading
const DefaultWatchDebounce = 100 * time.Millisecond

// ErrNoSource is returned when a Service has no manifest source configured
var ErrNoSource = errors.New("no manifest source configured")

// Source provides raw plugin records
type Source interface {
	// Name identifies the source in logs and metrics
	Name() string
	// Load returns the current records. Callers must not modify the result.
	Load(ctx context.Context) ([]manifest.PluginRecord, error)
}

// FileSource reads a JSON or YAML manifest from local disk. The parsed
// records are kept until Reload is called, either directly or by Watch.
type FileSource struct {
	path     string
	logger   *observability.Logger
	debounce time.Duration

	mu      sync.RWMutex
	records []manifest.PluginRecord
	loaded  bool
}

// NewFileSource creates a source for the manifest at path
func NewFileSource(path string, logger *observability.Logger) *FileSource {
	return &FileSource{
		path:     filepath.Clean(path),
		logger:   logger,
		debounce: DefaultWatchDebounce,
	}
}

// Name implements Source
func (f *FileSource) Name() string {
	return "file"
}

// Path returns the manifest path
func (f *FileSource) Path() string {
	return f.path
}

// Load implements Source
func (f *FileSource) Load(ctx context.Context) ([]manifest.PluginRecord, error) {
	f.mu.RLock()
	if f.loaded {
		records := f.records
		f.mu.RUnlock()
		return records, nil
	}
	f.mu.RUnlock()

	return f.Reload(ctx)
}

// Reload re-reads the manifest file. On failure the previously loaded
// records stay in place.
func (f *FileSource) Reload(ctx context.Context) ([]manifest.PluginRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := manifest.DecodeFile(f.path)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.records = records
	f.loaded = true
	f.mu.Unlock()

	return records, nil
}

// Check verifies the manifest file is still readable
func (f *FileSource) Check(ctx context.Context) error {
	if _, err := os.Stat(f.path); err != nil {
		return fmt.Errorf("manifest unavailable: %w", err)
	}
	return nil
}

// Watch reloads the manifest whenever the file changes and reports each
// reload result to onChange. Bursts of events are coalesced into a single
// reload once the file has been quiet for the debounce interval. The parent
// directory is watched so editors that replace the file through a rename are
// picked up. Watch blocks until ctx is cancelled.
func (f *FileSource) Watch(ctx context.Context, onChange func(err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	f.logger.WithField("path", f.path).Info("Watching manifest for changes")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(f.debounce)
			fire = timer.C
		case <-fire:
			fire = nil

			_, err := f.Reload(ctx)
			if err != nil {
				f.logger.WithError(err).WithField("path", f.path).Warn("Manifest reload failed, keeping previous records")
			} else {
				f.logger.WithField("path", f.path).Info("Manifest reloaded")
			}
			if onChange != nil {
				onChange(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.WithError(err).Warn("Manifest watcher error")
		}
	}
}

// StaticSource serves a fixed set of records
type StaticSource struct {
	records []manifest.PluginRecord
}

// NewStaticSource creates a source that always returns records
func NewStaticSource(records []manifest.PluginRecord) *StaticSource {
	return &StaticSource{records: records}
}

// Name implements Source
func (s *StaticSource) Name() string {
	return "static"
}

// Load implements Source
func (s *StaticSource) Load(ctx context.Context) ([]manifest.PluginRecord, error) {
	return s.records, nil
}
