package usage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(context.Background(), RedisConfig{
		URL:        "redis://" + mr.Addr(),
		MaxRetries: 1,
		PoolSize:   4,
		KeyPrefix:  "test:usage",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedisStore_RecordAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)

	require.NoError(t, store.Record(ctx, "echo", base))
	require.NoError(t, store.Record(ctx, "echo", base.Add(time.Minute)))
	require.NoError(t, store.Record(ctx, "tools/search", base))

	assert.Equal(t, "2", mr.HGet("test:usage:count", "echo"))

	stats, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, int64(2), stats["echo"].Count)
	require.NotNil(t, stats["echo"].LastUsed)
	assert.True(t, stats["echo"].LastUsed.Equal(base.Add(time.Minute)))
	assert.Equal(t, int64(1), stats["tools/search"].Count)
}

func TestRedisStore_EmptySnapshot(t *testing.T) {
	store, _ := setupRedisStore(t)

	stats, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestRedisStore_CorruptCount(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.HSet("test:usage:count", "echo", "lots")

	_, err := store.Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt usage count")
}

func TestRedisStore_EmptyName(t *testing.T) {
	store, _ := setupRedisStore(t)
	assert.ErrorIs(t, store.Record(context.Background(), "", base), ErrEmptyName)
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "")
	defer store.Close()

	require.NoError(t, store.Record(context.Background(), "echo", base))
	assert.Equal(t, "1", mr.HGet("neuronote:usage:count", "echo"))
	assert.Same(t, client, store.Client())
}

func TestNewRedisStore_Errors(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{URL: "invalid://url"})
	assert.Error(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), RedisConfig{URL: "redis://" + addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	assert.Error(t, store.Record(context.Background(), "echo", base))
	_, err := store.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestRedisStore_RecordKeepsLatest(t *testing.T) {
	ctx := context.Background()
	store, _ := setupRedisStore(t)
	memory := NewMemoryStore()

	for _, s := range []Store{store, memory} {
		require.NoError(t, s.Record(ctx, "echo", base))
		require.NoError(t, s.Record(ctx, "echo", base.Add(-time.Hour)))
	}

	redisStats, err := store.Snapshot(ctx)
	require.NoError(t, err)
	memoryStats, err := memory.Snapshot(ctx)
	require.NoError(t, err)

	require.NotNil(t, redisStats["echo"].LastUsed)
	assert.True(t, redisStats["echo"].LastUsed.Equal(base), "got %v", redisStats["echo"].LastUsed)
	assert.Equal(t, int64(2), redisStats["echo"].Count)
	assert.True(t, redisStats["echo"].LastUsed.Equal(*memoryStats["echo"].LastUsed))
}
