package httpx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed windows across every instance pointed at the same Redis.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// Returns {count, pttl}. The expiry is only set by the first hit in a window.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

func NewRedisLimiter(rdb redis.Scripter, limit int, every time.Duration, prefix string) *RedisLimiter {
	if limit <= 0 {
		limit = 60
	}
	if every <= 0 {
		every = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{rdb: rdb, limit: limit, window: every, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("unexpected rate limit script result %v", res)
	}
	count, pttl := res[0], res[1]
	reset := time.Duration(pttl) * time.Millisecond
	if pttl < 0 {
		reset = l.window
	}
	return Decision{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: l.limit - int(count),
		ResetIn:   reset,
	}, nil
}
