package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/neuronote/pkg/manifest"
	"github.com/platinummonkey/neuronote/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func writeManifest(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

// replaceManifest swaps the file in through a rename so readers never see a partial write
func replaceManifest(path, body string) {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(body), 0644); err == nil {
		_ = os.Rename(tmp, path)
	}
}

func TestFileSource_LoadCachesUntilReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.json")
	writeManifest(t, path, `{"plugins": [{"name": "echo"}]}`)

	source := NewFileSource(path, testLogger())
	assert.Equal(t, "file", source.Name())
	assert.Equal(t, path, source.Path())

	records, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	writeManifest(t, path, `{"plugins": [{"name": "echo"}, {"name": "search"}]}`)

	records, err = source.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1, "load serves the cached records")

	records, err = source.Reload(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFileSource_ReloadFailureKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	writeManifest(t, path, "plugins:\n  - name: echo\n")

	source := NewFileSource(path, testLogger())
	_, err := source.Load(context.Background())
	require.NoError(t, err)

	writeManifest(t, path, "plugins:\n  - description: nameless\n")
	_, err = source.Reload(context.Background())
	require.ErrorIs(t, err, manifest.ErrMissingRequiredField)

	records, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "echo", records[0].Name)
}

func TestFileSource_Check(t *testing.T) {
	dir := t.TempDir()
	source := NewFileSource(filepath.Join(dir, "missing.json"), testLogger())
	assert.Error(t, source.Check(context.Background()))

	_, err := source.Load(context.Background())
	assert.Error(t, err)
}

func TestFileSource_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.json")
	writeManifest(t, path, `{"plugins": [{"name": "echo"}]}`)

	source := NewFileSource(path, testLogger())
	_, err := source.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source.debounce = 10 * time.Millisecond
	changes := make(chan error, 16)
	done := make(chan error, 1)
	go func() {
		done <- source.Watch(ctx, func(err error) {
			select {
			case changes <- err:
			default:
			}
		})
	}()

	// the watcher registers asynchronously, keep writing until it notices
	require.Eventually(t, func() bool {
		replaceManifest(path, `{"plugins": [{"name": "echo"}, {"name": "search"}]}`)
		select {
		case err := <-changes:
			return err == nil
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	records, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestFileSource_WatchDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.json")
	writeManifest(t, path, `{"plugins": [{"name": "echo"}]}`)

	source := NewFileSource(path, testLogger())
	source.debounce = 150 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan error, 64)
	go func() {
		_ = source.Watch(ctx, func(err error) { changes <- err })
	}()

	// wait until the watcher is live
	require.Eventually(t, func() bool {
		replaceManifest(path, `{"plugins": [{"name": "echo"}]}`)
		select {
		case <-changes:
			return true
		case <-time.After(500 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	for len(changes) > 0 {
		<-changes
	}

	for i := 1; i <= 5; i++ {
		body := `{"plugins": [{"name": "echo"}`
		for j := 0; j < i; j++ {
			body += fmt.Sprintf(`, {"name": "extra%d"}`, j)
		}
		writeManifest(t, path, body+`]}`)
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case err := <-changes:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after burst")
	}
	time.Sleep(400 * time.Millisecond)
	assert.Empty(t, changes, "burst should coalesce into one reload")

	records, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 6)
}

func TestStaticSource(t *testing.T) {
	source := NewStaticSource([]manifest.PluginRecord{{Name: "echo"}})
	assert.Equal(t, "static", source.Name())

	records, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
