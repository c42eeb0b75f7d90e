package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "shield:ratelimit"

// incrementLua runs the whole window/block decision server-side so the
// read-modify-write is atomic per key.
const incrementLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local cutoff = tonumber(ARGV[2])

local blocked_until = tonumber(redis.call("HGET", key, "blocked_until") or "0")
local window_start = redis.call("HGET", key, "window_start")
local blocked = 0

if blocked_until > now then
	blocked = 1
elseif window_start == false or tonumber(window_start) < cutoff then
	redis.call("HSET", key, "count", 1, "window_start", now)
	redis.call("HDEL", key, "blocked_until")
else
	redis.call("HINCRBY", key, "count", 1)
	redis.call("HDEL", key, "blocked_until")
end

local function field(name, fallback)
	local v = redis.call("HGET", key, name)
	if v == false then
		return fallback
	end
	return v
end

return {blocked, field("count", "0"), field("window_start", "0"), field("blocked_until", ""), field("total_blocks", "0"), field("reason", "")}
`

const applyBlockLua = `
local total = tonumber(redis.call("HGET", KEYS[1], "total_blocks") or "0")
if total ~= tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], "total_blocks", total + 1, "blocked_until", ARGV[2], "reason", ARGV[3])
return 1
`

// RedisCounterStore keeps counters in Redis hashes, one per bucket. Hashes
// carry no TTL; retention is handled outside the service.
type RedisCounterStore struct {
	client          redis.UniversalClient
	prefix          string
	incrementScript *redis.Script
	applyScript     *redis.Script
}

// RedisOption customises a RedisCounterStore.
type RedisOption func(*RedisCounterStore)

// WithRedisPrefix overrides the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisCounterStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// NewRedisCounterStore returns a CounterStore backed by Redis.
func NewRedisCounterStore(client redis.UniversalClient, opts ...RedisOption) *RedisCounterStore {
	s := &RedisCounterStore{
		client:          client,
		prefix:          defaultRedisPrefix,
		incrementScript: redis.NewScript(incrementLua),
		applyScript:     redis.NewScript(applyBlockLua),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) redisKey(key Key) string {
	return s.prefix + ":" + key.String()
}

// IncrementAndCheck evaluates the increment script.
func (s *RedisCounterStore) IncrementAndCheck(ctx context.Context, key Key, window time.Duration, now time.Time) (Counter, error) {
	res, err := s.incrementScript.Run(ctx, s.client, []string{s.redisKey(key)},
		now.UnixMilli(), now.Add(-window).UnixMilli()).Slice()
	if err != nil {
		return Counter{}, fmt.Errorf("redis increment %s: %w", key, err)
	}
	if len(res) != 6 {
		return Counter{}, fmt.Errorf("redis increment %s: unexpected reply length %d", key, len(res))
	}

	blocked, _ := res[0].(int64)
	c := Counter{Key: key, Blocked: blocked == 1}
	c.Count = atoi(res[1])
	c.WindowStart = time.UnixMilli(atoi64(res[2])).UTC()
	if ms := atoi64(res[3]); ms > 0 {
		t := time.UnixMilli(ms).UTC()
		c.BlockedUntil = &t
	}
	c.TotalBlocks = atoi(res[4])
	c.Reason, _ = res[5].(string)
	return c, nil
}

// ApplyBlock evaluates the compare-and-swap script.
func (s *RedisCounterStore) ApplyBlock(ctx context.Context, key Key, expectedTotalBlocks int, until time.Time, reason string) (bool, error) {
	n, err := s.applyScript.Run(ctx, s.client, []string{s.redisKey(key)},
		expectedTotalBlocks, until.UnixMilli(), reason).Int()
	if err != nil {
		return false, fmt.Errorf("redis apply block %s: %w", key, err)
	}
	return n == 1, nil
}

// Get reads a bucket hash.
func (s *RedisCounterStore) Get(ctx context.Context, key Key) (*Counter, error) {
	vals, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	c := &Counter{
		Key:         key,
		Count:       atoi(vals["count"]),
		WindowStart: time.UnixMilli(atoi64(vals["window_start"])).UTC(),
		TotalBlocks: atoi(vals["total_blocks"]),
		Reason:      vals["reason"],
	}
	if ms := atoi64(vals["blocked_until"]); ms > 0 {
		t := time.UnixMilli(ms).UTC()
		c.BlockedUntil = &t
	}
	return c, nil
}

func atoi64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}

func atoi(v interface{}) int {
	return int(atoi64(v))
}
