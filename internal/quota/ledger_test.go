package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantled-app/creator-api/internal/generation"
)

func setupMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: s.Addr()})
}

func TestLedger_ReserveUnderLimit(t *testing.T) {
	rdb := setupMiniredis(t)
	l := NewLedger(rdb)
	ctx := context.Background()
	userID := uuid.New()
	expireAt := time.Now().Add(time.Hour)

	allowed, count, err := l.Reserve(ctx, userID, "2026-08", generation.CapabilityText, 5, expireAt)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}

func TestLedger_ReserveAtLimit(t *testing.T) {
	rdb := setupMiniredis(t)
	l := NewLedger(rdb)
	ctx := context.Background()
	userID := uuid.New()
	expireAt := time.Now().Add(time.Hour)

	for i := 0; i < 3; i++ {
		allowed, _, err := l.Reserve(ctx, userID, "2026-08", generation.CapabilityText, 3, expireAt)
		require.NoError(t, err)
		assert.True(t, allowed, "reservation %d should be granted", i+1)
	}

	allowed, count, err := l.Reserve(ctx, userID, "2026-08", generation.CapabilityText, 3, expireAt)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 3, count, "denied reservation must not move the counter")
}

func TestLedger_ReserveConcurrentNeverOvershoots(t *testing.T) {
	rdb := setupMiniredis(t)
	l := NewLedger(rdb)
	ctx := context.Background()
	userID := uuid.New()
	expireAt := time.Now().Add(time.Hour)

	const limit = 10
	const callers = 50

	var wg sync.WaitGroup
	granted := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, err := l.Reserve(ctx, userID, "2026-08", generation.CapabilityImage, limit, expireAt)
			require.NoError(t, err)
			granted <- allowed
		}()
	}
	wg.Wait()
	close(granted)

	grants := 0
	for g := range granted {
		if g {
			grants++
		}
	}
	assert.Equal(t, limit, grants, "exactly the limit is ever granted")

	count, err := l.Count(ctx, userID, "2026-08", generation.CapabilityImage)
	require.NoError(t, err)
	assert.Equal(t, limit, count)
}

func TestLedger_KeysIsolatedByUserAndCapability(t *testing.T) {
	rdb := setupMiniredis(t)
	l := NewLedger(rdb)
	ctx := context.Background()
	expireAt := time.Now().Add(time.Hour)

	user1 := uuid.New()
	user2 := uuid.New()

	// Exhaust user1's text quota.
	for i := 0; i < 2; i++ {
		_, _, err := l.Reserve(ctx, user1, "2026-08", generation.CapabilityText, 2, expireAt)
		require.NoError(t, err)
	}
	allowed, _, err := l.Reserve(ctx, user1, "2026-08", generation.CapabilityText, 2, expireAt)
	require.NoError(t, err)
	assert.False(t, allowed)

	// user1's image quota and user2's text quota are untouched.
	allowed, _, err = l.Reserve(ctx, user1, "2026-08", generation.CapabilityImage, 2, expireAt)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = l.Reserve(ctx, user2, "2026-08", generation.CapabilityText, 2, expireAt)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLedger_PeriodRollover(t *testing.T) {
	rdb := setupMiniredis(t)
	l := NewLedger(rdb)
	ctx := context.Background()
	userID := uuid.New()
	expireAt := time.Now().Add(time.Hour)

	// Exhaust August.
	_, _, err := l.Reserve(ctx, userID, "2026-08", generation.CapabilityAvatar, 1, expireAt)
	require.NoError(t, err)
	allowed, _, err := l.Reserve(ctx, userID, "2026-08", generation.CapabilityAvatar, 1, expireAt)
	require.NoError(t, err)
	assert.False(t, allowed)

	// September starts fresh.
	allowed, count, err := l.Reserve(ctx, userID, "2026-09", generation.CapabilityAvatar, 1, expireAt)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}

func TestLedger_Increment(t *testing.T) {
	rdb := setupMiniredis(t)
	l := NewLedger(rdb)
	ctx := context.Background()
	userID := uuid.New()
	expireAt := time.Now().Add(time.Hour)

	for want := 1; want <= 3; want++ {
		n, err := l.Increment(ctx, userID, "2026-08", generation.CapabilityText, expireAt)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	count, err := l.Count(ctx, userID, "2026-08", generation.CapabilityText)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLedger_CountMissingKey(t *testing.T) {
	rdb := setupMiniredis(t)
	l := NewLedger(rdb)

	count, err := l.Count(context.Background(), uuid.New(), "2026-08", generation.CapabilityVideo)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "2026-08", Period(time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2026-09", Period(time.Date(2026, 9, 1, 0, 0, 1, 0, time.UTC)))

	// Local instants normalize to UTC before the period is derived.
	loc := time.FixedZone("UTC+10", 10*3600)
	assert.Equal(t, "2026-08", Period(time.Date(2026, 9, 1, 8, 0, 0, 0, loc)))
}

func TestPeriodEnd(t *testing.T) {
	end := periodEnd(time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC), end)
}
