package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// LockoutThreshold is the number of failed logins within the window
	// that locks an account.
	LockoutThreshold = 5
	// LockoutWindow is the sliding window over which failures count.
	LockoutWindow = 15 * time.Minute
	// maxTrackedFailures caps the stored history per account.
	maxTrackedFailures = 10
)

// FailureTracker records failed login attempts and answers whether an
// account is locked out. Failures age out of a sliding window rather than
// resetting on a fixed schedule.
type FailureTracker interface {
	// RecordFailure logs one failed attempt for the account.
	RecordFailure(ctx context.Context, account string) error
	// IsLocked reports whether the account has reached the failure
	// threshold, and if so how long until the oldest counted failure
	// ages out.
	IsLocked(ctx context.Context, account string) (bool, time.Duration, error)
	// Reset clears the failure history, called after a successful login.
	Reset(ctx context.Context, account string) error
}

// RedisFailureTracker stores failure timestamps in a sorted set per
// account, scored by unix nanoseconds, so the window survives restarts
// and is shared across server instances.
type RedisFailureTracker struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisFailureTracker(client *redis.Client) *RedisFailureTracker {
	return &RedisFailureTracker{client: client, now: time.Now}
}

func failureKey(account string) string {
	return "login_failures:" + account
}

func (t *RedisFailureTracker) RecordFailure(ctx context.Context, account string) error {
	key := failureKey(account)
	now := t.now()

	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	// Drop entries older than the window and cap the history length.
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-LockoutWindow).UnixNano(), 10))
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(maxTrackedFailures + 1)))
	pipe.Expire(ctx, key, LockoutWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

func (t *RedisFailureTracker) IsLocked(ctx context.Context, account string) (bool, time.Duration, error) {
	key := failureKey(account)
	now := t.now()
	cutoff := now.Add(-LockoutWindow).UnixNano()

	entries, err := t.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return false, 0, fmt.Errorf("read login failures: %w", err)
	}

	if len(entries) < LockoutThreshold {
		return false, 0, nil
	}

	// The lock releases when the oldest of the counted failures ages out.
	oldest := time.Unix(0, int64(entries[len(entries)-LockoutThreshold].Score))
	remaining := oldest.Add(LockoutWindow).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}

func (t *RedisFailureTracker) Reset(ctx context.Context, account string) error {
	if err := t.client.Del(ctx, failureKey(account)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}

// MemoryFailureTracker is an in-process fallback used when Redis is not
// configured. State is lost on restart and not shared across instances.
type MemoryFailureTracker struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

func NewMemoryFailureTracker() *MemoryFailureTracker {
	return &MemoryFailureTracker{
		failures: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (t *MemoryFailureTracker) RecordFailure(_ context.Context, account string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.prune(account)
	recent = append(recent, t.now())
	if len(recent) > maxTrackedFailures {
		recent = recent[len(recent)-maxTrackedFailures:]
	}
	t.failures[account] = recent
	return nil
}

func (t *MemoryFailureTracker) IsLocked(_ context.Context, account string) (bool, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.prune(account)
	t.failures[account] = recent
	if len(recent) < LockoutThreshold {
		return false, 0, nil
	}

	oldest := recent[len(recent)-LockoutThreshold]
	remaining := oldest.Add(LockoutWindow).Sub(t.now())
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}

func (t *MemoryFailureTracker) Reset(_ context.Context, account string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, account)
	return nil
}

// prune drops failures outside the window. Caller must hold the lock.
func (t *MemoryFailureTracker) prune(account string) []time.Time {
	cutoff := t.now().Add(-LockoutWindow)
	var recent []time.Time
	for _, at := range t.failures[account] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	return recent
}
