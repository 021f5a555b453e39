// Package tsdb stores per-group occurrence counts as fixed-rollup time
// series in Redis. Ingestion increments buckets; the stream serializer reads
// ranges back as [timestamp, count] pairs.
package tsdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Supported rollups. Retention is sized so the widest API preset for each
// rollup (24 hourly buckets, 14 daily buckets) stays fully backed.
const (
	RollupHour = time.Hour
	RollupDay  = 24 * time.Hour
)

var retention = map[time.Duration]time.Duration{
	RollupHour: 26 * time.Hour,
	RollupDay:  15 * 24 * time.Hour,
}

// Point is a single series entry, marshaled as [timestamp, count]
type Point [2]int64

// Store is a Redis-backed time-series store
type Store struct {
	client *redis.Client
}

// New creates a Store from a Redis URL
func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &Store{client: redis.NewClient(opts)}, nil
}

// NewWithClient creates a Store from an existing client (used in tests)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Increment records one occurrence for a group at ts across all rollups,
// both environment-scoped and unscoped.
func (s *Store) Increment(ctx context.Context, groupID uint, environmentID *uint, ts time.Time) error {
	pipe := s.client.TxPipeline()
	for rollup, ttl := range retention {
		for _, env := range envKeys(environmentID) {
			key := bucketKey(groupID, env, rollup, bucketStart(ts, rollup))
			pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Range returns one zero-filled series per group covering [start, end] at the
// given rollup, optionally scoped to an environment.
func (s *Store) Range(ctx context.Context, groupIDs []uint, environmentID *uint, start, end time.Time, rollup time.Duration) (map[uint][]Point, error) {
	buckets := bucketsBetween(start, end, rollup)
	env := envKey(environmentID)

	keys := make([]string, 0, len(groupIDs)*len(buckets))
	for _, id := range groupIDs {
		for _, b := range buckets {
			keys = append(keys, bucketKey(id, env, rollup, b))
		}
	}

	var values []interface{}
	if len(keys) > 0 {
		res, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		values = res
	}

	result := make(map[uint][]Point, len(groupIDs))
	i := 0
	for _, id := range groupIDs {
		series := make([]Point, len(buckets))
		for j, b := range buckets {
			var count int64
			if raw, ok := values[i].(string); ok {
				count, _ = strconv.ParseInt(raw, 10, 64)
			}
			series[j] = Point{b.Unix(), count}
			i++
		}
		result[id] = series
	}
	return result, nil
}

// MakeSeries builds a constant-valued series with the same shape a Range call
// over [start, end] would return. Used to degrade gracefully when no
// environment context is available.
func MakeSeries(value int64, start, end time.Time, rollup time.Duration) []Point {
	buckets := bucketsBetween(start, end, rollup)
	series := make([]Point, len(buckets))
	for i, b := range buckets {
		series[i] = Point{b.Unix(), value}
	}
	return series
}

// bucketStart truncates ts to its rollup bucket
func bucketStart(ts time.Time, rollup time.Duration) time.Time {
	return ts.UTC().Truncate(rollup)
}

// bucketsBetween enumerates bucket starts covering [start, end]
func bucketsBetween(start, end time.Time, rollup time.Duration) []time.Time {
	var buckets []time.Time
	for b := bucketStart(start, rollup); !b.After(end); b = b.Add(rollup) {
		buckets = append(buckets, b)
	}
	return buckets
}

func envKeys(environmentID *uint) []string {
	if environmentID == nil {
		return []string{envKey(nil)}
	}
	return []string{envKey(nil), envKey(environmentID)}
}

func envKey(environmentID *uint) string {
	if environmentID == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*environmentID), 10)
}

func bucketKey(groupID uint, env string, rollup time.Duration, bucket time.Time) string {
	return fmt.Sprintf("ts:group:%d:%s:%d:%d", groupID, env, int64(rollup.Seconds()), bucket.Unix())
}
