package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/neuronote/pkg/manifest"
	"github.com/platinummonkey/neuronote/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func TestMemoryStore_RecordAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Record(ctx, "echo", base))
	require.NoError(t, store.Record(ctx, "echo", base.Add(time.Minute)))
	require.NoError(t, store.Record(ctx, "echo", base.Add(-time.Hour)))
	require.NoError(t, store.Record(ctx, "search", base))

	stats, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, int64(3), stats["echo"].Count)
	assert.True(t, stats["echo"].LastUsed.Equal(base.Add(time.Minute)), "last used keeps the latest time")
	assert.Equal(t, int64(1), stats["search"].Count)
}

func TestMemoryStore_SnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Record(ctx, "echo", base))

	stats, err := store.Snapshot(ctx)
	require.NoError(t, err)
	*stats["echo"].LastUsed = base.Add(time.Hour)

	again, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, again["echo"].LastUsed.Equal(base))
}

func TestMemoryStore_EmptyName(t *testing.T) {
	err := NewMemoryStore().Record(context.Background(), "  ", base)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Record(ctx, "echo", base)
		}()
	}
	wg.Wait()

	stats, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), stats["echo"].Count)
}

func TestOverlay(t *testing.T) {
	manifestTime := base.Add(-24 * time.Hour)
	records := []manifest.PluginRecord{
		{Name: "echo", Usage: 2, LastUsed: &manifestTime, Tags: []string{"util"}},
		{Name: "search", Usage: 7},
	}
	stats := map[string]Stat{
		"echo": {Name: "echo", Count: 10, LastUsed: &base},
	}

	out := Overlay(records, stats)
	require.Len(t, out, 2)

	assert.Equal(t, int64(10), out[0].Usage)
	assert.True(t, out[0].LastUsed.Equal(base))
	assert.Equal(t, []string{"util"}, out[0].Tags)
	assert.Equal(t, int64(7), out[1].Usage)

	// input untouched
	assert.Equal(t, int64(2), records[0].Usage)
	assert.True(t, records[0].LastUsed.Equal(manifestTime))
}

func TestSorted(t *testing.T) {
	stats := map[string]Stat{
		"b": {Name: "b", Count: 2},
		"a": {Name: "a", Count: 2},
		"c": {Name: "c", Count: 5},
	}
	sorted := Sorted(stats)
	require.Len(t, sorted, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{sorted[0].Name, sorted[1].Name, sorted[2].Name})
}

type failingStore struct{ *MemoryStore }

func (f *failingStore) Snapshot(ctx context.Context) (map[string]Stat, error) {
	return nil, errors.New("backend down")
}

func TestInstrumentedStore(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	store := WithMetrics(NewMemoryStore(), "memory", metrics)
	require.NoError(t, store.Record(ctx, "echo", base))
	_, err := store.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UsageOperationsTotal.WithLabelValues("record", "memory", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UsageOperationsTotal.WithLabelValues("snapshot", "memory", "success")))

	failing := WithMetrics(&failingStore{MemoryStore: NewMemoryStore()}, "memory", metrics)
	_, err = failing.Snapshot(ctx)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UsageOperationsTotal.WithLabelValues("snapshot", "memory", "error")))
	assert.NoError(t, store.Close())
}
