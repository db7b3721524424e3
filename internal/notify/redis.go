package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Sorted set of events scored by microseconds since the epoch.
	KeyChanges = "changes:orders"
	// Last issued score, shared by all instances.
	KeyChangesClock = "changes:orders:clock"
)

// Stores one event under a score greater than both now and every score
// issued before, and trims what fell out of retention. Issuing the score and
// adding the member in one script means no poller can see a later score
// before an earlier one is visible.
var appendChange = redis.NewScript(`
local now = tonumber(ARGV[1])
local last = tonumber(redis.call('GET', KEYS[2]) or '0')
if now <= last then now = last + 1 end
redis.call('SET', KEYS[2], now)
redis.call('ZADD', KEYS[1], now, ARGV[2])
local retention = tonumber(ARGV[3])
if retention > 0 then
  redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. (now - retention))
end
return now
`)

// RedisFeed shares the change feed between API instances.
type RedisFeed struct {
	rdb       redis.UniversalClient
	retention time.Duration
}

func NewRedisFeed(rdb redis.UniversalClient, retention time.Duration) *RedisFeed {
	return &RedisFeed{rdb: rdb, retention: retention}
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Append stores ev. The member carries no timestamp; At is the score.
func (f *RedisFeed) Append(ctx context.Context, ev Event) (Event, error) {
	ev.At = time.Time{}
	member, err := json.Marshal(ev)
	if err != nil {
		return ev, fmt.Errorf("encode change: %w", err)
	}

	score, err := appendChange.Run(ctx, f.rdb,
		[]string{KeyChanges, KeyChangesClock},
		time.Now().UnixMicro(), member, f.retention.Microseconds(),
	).Int64()
	if err != nil {
		return ev, fmt.Errorf("store change: %w", err)
	}
	ev.At = time.UnixMicro(score).UTC()
	return ev, nil
}

func (f *RedisFeed) Since(ctx context.Context, since time.Time, limit int) ([]Event, error) {
	lower := "-inf"
	if !since.IsZero() {
		lower = "(" + strconv.FormatInt(since.UnixMicro(), 10)
	}
	by := &redis.ZRangeBy{Min: lower, Max: "+inf"}
	if limit > 0 {
		by.Count = int64(limit)
	}
	members, err := f.rdb.ZRangeByScoreWithScores(ctx, KeyChanges, by).Result()
	if err != nil {
		return nil, fmt.Errorf("read changes: %w", err)
	}
	out := make([]Event, 0, len(members))
	for _, m := range members {
		raw, ok := m.Member.(string)
		if !ok {
			return nil, fmt.Errorf("decode change: unexpected member %T", m.Member)
		}
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode change: %w", err)
		}
		ev.At = time.UnixMicro(int64(m.Score)).UTC()
		out = append(out, ev)
	}
	return out, nil
}
