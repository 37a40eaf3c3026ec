package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix     = "ratelimit:counter"
	defaultRedisMaxRetries = 5

	fieldCount       = "count"
	fieldWindowStart = "window_start_ms"
)

// ErrTooMuchContention is returned when an optimistic Redis transaction keeps
// losing to concurrent writers on the same key.
var ErrTooMuchContention = errors.New("rate limit counter: too much contention")

// RedisStore keeps counters in Redis so several gateway instances share quotas.
// Each record is a hash that expires after the retention horizon, which lets
// Redis evict abandoned clients on its own.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	retention  time.Duration
	maxRetries int
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithRedisMaxRetries sets how many times a conflicting transaction is retried.
func WithRedisMaxRetries(n int) RedisStoreOption {
	return func(s *RedisStore) { s.maxRetries = n }
}

// NewRedisStore creates a Redis-backed counter store. retention is the TTL applied
// to every record on write.
func NewRedisStore(client redis.UniversalClient, retention time.Duration, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:     client,
		prefix:     defaultRedisPrefix,
		retention:  retention,
		maxRetries: defaultRedisMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + ":" + key
}

// Update implements CounterStore using WATCH/MULTI so the read-modify-write is atomic.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := s.redisKey(key)
	txf := func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, k, fieldCount, fieldWindowStart).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		rec, found, err := parseCounter(vals)
		if err != nil {
			return err
		}
		next, write := fn(rec, found)
		if !write {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, fieldCount, next.Count, fieldWindowStart, formatMillis(next.WindowStart))
			if s.retention > 0 {
				pipe.PExpire(ctx, k, s.retention)
			}
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("update counter %s: %w", key, err)
	}
	return fmt.Errorf("update counter %s: %w", key, ErrTooMuchContention)
}

// Sweep implements CounterStore. Records carry a TTL, so there is nothing to do.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseCounter(vals []interface{}) (Counter, bool, error) {
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Counter{}, false, nil
	}
	countStr, ok1 := vals[0].(string)
	startStr, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return Counter{}, false, fmt.Errorf("unexpected counter field types %T, %T", vals[0], vals[1])
	}
	count, err := strconv.Atoi(countStr)
	if err != nil {
		return Counter{}, false, fmt.Errorf("parse counter count: %w", err)
	}
	startMs, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return Counter{}, false, fmt.Errorf("parse counter window start: %w", err)
	}
	return Counter{Count: count, WindowStart: time.UnixMilli(startMs)}, true, nil
}
