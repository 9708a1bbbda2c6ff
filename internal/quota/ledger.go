package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mantled-app/creator-api/internal/generation"
)

const usageKeyPrefix = "usage:"

// periodGrace keeps a period's counter readable for a while after rollover
// so late accounting writes still land.
const periodGrace = 72 * time.Hour

// reserveScript atomically increments the counter only while it is below
// the ceiling. Returns {allowed, count}. This is the single critical
// section of the quota path; concurrent callers serialize here instead of
// racing a read-then-write.
var reserveScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
  return {0, current}
end
current = redis.call('INCR', KEYS[1])
redis.call('EXPIREAT', KEYS[1], ARGV[2])
return {1, current}
`)

// Ledger keeps the authoritative per-period usage counters in Redis.
type Ledger struct {
	rdb redis.Cmdable
}

func NewLedger(rdb redis.Cmdable) *Ledger {
	return &Ledger{rdb: rdb}
}

// Period derives the accounting period key for a wall-clock instant.
// Rollover is implicit: a new month yields a new key with fresh counters.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func usageKey(userID uuid.UUID, period string, c generation.Capability) string {
	return fmt.Sprintf("%s%s:%s:%s", usageKeyPrefix, period, userID, c)
}

// Reserve performs the atomic check-and-increment against the limit.
// Returns whether the unit was granted and the counter value after the call.
func (l *Ledger) Reserve(ctx context.Context, userID uuid.UUID, period string, c generation.Capability, limit int, expireAt time.Time) (bool, int, error) {
	key := usageKey(userID, period, c)

	vals, err := reserveScript.Run(ctx, l.rdb, []string{key}, limit, expireAt.Unix()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("reserving quota unit: %w", err)
	}
	if len(vals) != 2 {
		return false, 0, fmt.Errorf("reserving quota unit: unexpected script reply %v", vals)
	}
	return vals[0] == 1, int(vals[1]), nil
}

// Increment bumps the counter without a ceiling, for unlimited tiers where
// usage is still counted but never denied.
func (l *Ledger) Increment(ctx context.Context, userID uuid.UUID, period string, c generation.Capability, expireAt time.Time) (int, error) {
	key := usageKey(userID, period, c)

	pipe := l.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, expireAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incrementing usage: %w", err)
	}
	return int(incrCmd.Val()), nil
}

// Count returns the counter for the given period key. Missing keys read
// as zero.
func (l *Ledger) Count(ctx context.Context, userID uuid.UUID, period string, c generation.Capability) (int, error) {
	key := usageKey(userID, period, c)

	n, err := l.rdb.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading usage counter: %w", err)
	}
	return n, nil
}

// periodEnd returns the expiry instant for a period's counters: the first
// day of the next month plus grace.
func periodEnd(t time.Time) time.Time {
	t = t.UTC()
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.Add(periodGrace)
}
