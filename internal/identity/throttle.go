package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var failureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// LoginThrottle counts failed sign-ins per email in a fixed window that
// starts at the first failure.  A nil *LoginThrottle never blocks.
type LoginThrottle struct {
	rdb    *redis.Client
	prefix string
	max    int
	window time.Duration
}

// NewLoginThrottle returns nil when rdb is nil or the limits are not
// positive, which disables throttling.
func NewLoginThrottle(rdb *redis.Client, max int, window time.Duration) *LoginThrottle {
	if rdb == nil || max <= 0 || window <= 0 {
		return nil
	}
	return &LoginThrottle{rdb: rdb, prefix: "hotel:login:fail", max: max, window: window}
}

func (t *LoginThrottle) key(email string) string {
	return t.prefix + ":" + strings.ToLower(strings.TrimSpace(email))
}

// Blocked reports whether email has used up its failed attempts.
func (t *LoginThrottle) Blocked(ctx context.Context, email string) (bool, error) {
	if t == nil {
		return false, nil
	}
	n, err := t.rdb.Get(ctx, t.key(email)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= t.max, nil
}

// Fail records one failed attempt.
func (t *LoginThrottle) Fail(ctx context.Context, email string) error {
	if t == nil {
		return nil
	}
	return failureScript.Run(ctx, t.rdb, []string{t.key(email)}, t.window.Milliseconds()).Err()
}

// Reset clears the counter after a successful sign-in.
func (t *LoginThrottle) Reset(ctx context.Context, email string) error {
	if t == nil {
		return nil
	}
	return t.rdb.Del(ctx, t.key(email)).Err()
}
