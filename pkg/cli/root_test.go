package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/neuronote/pkg/audit"
	"github.com/platinummonkey/neuronote/pkg/manifest"
	"github.com/platinummonkey/neuronote/pkg/usage"
)

const testManifest = `{
  "plugins": [
    {"name": "memory/search", "usage": 4, "last_used": "2024-06-01T11:58:00Z"},
    {"name": "memory/archive", "usage": 8},
    {"name": "web_fetch", "usage": 2, "tags": ["net"]}
  ]
}`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugins.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "manifestctl", root.Name)
	assert.NotNil(t, root.Flags)

	expectedCommands := []string{"group", "validate", "trace", "usage"}
	for _, cmdName := range expectedCommands {
		assert.Contains(t, root.Subcommands, cmdName, "Expected subcommand %s to be registered", cmdName)
	}
	assert.Equal(t, len(expectedCommands), len(root.Subcommands))
}

func TestCommandUsage(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommandWithOutput(&out)

	require.NoError(t, root.ExecuteArgs(nil))
	output := out.String()
	assert.Contains(t, output, "Usage: manifestctl <command> [args]")
	assert.Contains(t, output, "group")
	assert.Less(t, strings.Index(output, "group"), strings.Index(output, "validate"), "commands are listed alphabetically")

	err := root.ExecuteArgs([]string{"explode"})
	assert.EqualError(t, err, "unknown command: explode")
}

func TestGroupCommand(t *testing.T) {
	path := writeManifest(t, testManifest)

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		root := NewRootCommandWithOutput(&out)
		err := root.ExecuteArgs([]string{"group", "-file", path, "-sort", "usage", "-now", "2024-06-01T12:00:00Z"})
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 5)
		assert.Equal(t, "memory (2)", lines[0])
		assert.Contains(t, lines[1], "memory/archive")
		assert.Contains(t, lines[1], "100%")
		assert.Contains(t, lines[2], "memory/search")
		assert.Contains(t, lines[2], "recent")
		assert.Equal(t, "web (1)", lines[3])
		assert.Contains(t, lines[4], "net")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		root := NewRootCommandWithOutput(&out)
		err := root.ExecuteArgs([]string{"group", "-file", path, "-format", "json"})
		require.NoError(t, err)

		var result manifest.GroupedResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, []string{"memory", "web"}, result.Categories())
		assert.Equal(t, "memory/archive", result.Groups[0].Plugins[0].Name)
	})

	t.Run("errors", func(t *testing.T) {
		root := NewRootCommandWithOutput(&bytes.Buffer{})

		err := root.ExecuteArgs([]string{"group", "-file", path, "-sort", "popularity"})
		assert.ErrorIs(t, err, manifest.ErrInvalidSortKey)

		err = root.ExecuteArgs([]string{"group", "-file", path, "-format", "xml"})
		assert.Error(t, err)

		err = root.ExecuteArgs([]string{"group", "-file", path, "-now", "yesterday"})
		assert.Error(t, err)
	})
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommandWithOutput(&out)

	path := writeManifest(t, testManifest)
	require.NoError(t, root.ExecuteArgs([]string{"validate", "-file", path}))
	assert.Contains(t, out.String(), "3 plugins in 2 categories")

	bad := writeManifest(t, `{"plugins": [{"name": "ok"}, {"description": "nameless"}]}`)
	err := root.ExecuteArgs([]string{"validate", "-file", bad})
	assert.ErrorIs(t, err, manifest.ErrMissingRequiredField)
}

func TestTraceCommand(t *testing.T) {
	id := "3f0c1e52-7d5a-4f8e-9a51-0f6d2b7c9e11"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audit/"+id {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Trace not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(audit.TraceResponse{
			TraceID: id,
			Trace: &audit.Trace{
				ExecutedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
				Input:      "find notes",
				Results: []audit.PluginResult{
					{Plugin: "memory/search", Success: true},
					{Plugin: "web_fetch", Error: "timeout"},
				},
			},
		})
	}))
	defer server.Close()

	var out bytes.Buffer
	root := NewRootCommandWithOutput(&out)

	require.NoError(t, root.ExecuteArgs([]string{"trace", "-server", server.URL + "/", "-id", id}))
	output := out.String()
	assert.Contains(t, output, "Trace:    "+id)
	assert.Contains(t, output, "2024-06-01T12:00:00Z")
	assert.Contains(t, output, "1. memory/search [ok]")
	assert.Contains(t, output, "2. web_fetch [failed: timeout]")

	err := root.ExecuteArgs([]string{"trace", "-server", server.URL, "-id", "6a1f4c3e-0000-4000-8000-000000000000"})
	assert.ErrorContains(t, err, "not found")

	err = root.ExecuteArgs([]string{"trace", "-server", server.URL})
	assert.ErrorContains(t, err, "trace id is required")
}

func TestUsageCommand(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "usage.db")
	ctx := context.Background()

	store, err := usage.OpenSQLStore(ctx, usage.SQLConfig{Driver: usage.DialectSQLite, DSN: dsn, MaxConns: 1})
	require.NoError(t, err)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, "web_fetch", at))
	require.NoError(t, store.Record(ctx, "memory/search", at))
	require.NoError(t, store.Record(ctx, "memory/search", at))
	require.NoError(t, store.Close())

	var out bytes.Buffer
	root := NewRootCommandWithOutput(&out)
	require.NoError(t, root.ExecuteArgs([]string{"usage", "-backend", "sqlite", "-dsn", dsn}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "PLUGIN"))
	assert.True(t, strings.HasPrefix(lines[1], "memory/search"))
	assert.Contains(t, lines[1], "2024-06-01T12:00:00Z")
	assert.True(t, strings.HasPrefix(lines[2], "web_fetch"))

	assert.Error(t, root.ExecuteArgs([]string{"usage", "-backend", "mongo", "-dsn", "x"}))
	assert.Error(t, root.ExecuteArgs([]string{"usage"}))
}
