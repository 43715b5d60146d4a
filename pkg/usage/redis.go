package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultRedisPrefix = "neuronote:usage"

// RedisConfig configures a RedisStore
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
	KeyPrefix  string
}

// recordScript increments the count and keeps the larger last-used value.
// Values are decimal unix nanoseconds of post-epoch times, so they compare by
// length then lexically without losing precision to Lua doubles.
var recordScript = redis.NewScript(`
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
local cur = redis.call('HGET', KEYS[2], ARGV[1])
local at = ARGV[2]
if (not cur) or #at > #cur or (#at == #cur and at > cur) then
	redis.call('HSET', KEYS[2], ARGV[1], at)
end
return 1
`)

// RedisStore keeps counters in two Redis hashes, one for counts and one for
// last-used unix nanoseconds
type RedisStore struct {
	client   *redis.Client
	countKey string
	lastKey  string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		client:   client,
		countKey: prefix + ":count",
		lastKey:  prefix + ":last_used",
	}
}

// Client returns the underlying client for health checks
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Record implements Store
func (s *RedisStore) Record(ctx context.Context, name string, at time.Time) error {
	if err := validateName(name); err != nil {
		return err
	}

	keys := []string{s.countKey, s.lastKey}
	if err := recordScript.Run(ctx, s.client, keys, name, strconv.FormatInt(at.UnixNano(), 10)).Err(); err != nil {
		return fmt.Errorf("failed to record usage for %s: %w", name, err)
	}
	return nil
}

// Snapshot implements Store
func (s *RedisStore) Snapshot(ctx context.Context) (map[string]Stat, error) {
	counts, err := s.client.HGetAll(ctx, s.countKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read usage counts: %w", err)
	}
	lasts, err := s.client.HGetAll(ctx, s.lastKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read last used times: %w", err)
	}

	out := make(map[string]Stat, len(counts))
	for name, raw := range counts {
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt usage count for %s: %w", name, err)
		}
		stat := Stat{Name: name, Count: count}
		if rawLast, ok := lasts[name]; ok {
			nanos, err := strconv.ParseInt(rawLast, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("corrupt last used time for %s: %w", name, err)
			}
			t := time.Unix(0, nanos).UTC()
			stat.LastUsed = &t
		}
		out[name] = stat
	}
	return out, nil
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
