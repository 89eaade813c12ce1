package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return srv, client
}

// steppingClock returns a clock that advances by step on every reading,
// so consecutive failures never collide on the same nanosecond member.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func TestRedisFailureTracker_LocksAtThreshold(t *testing.T) {
	_, client := newTestRedis(t)
	tracker := NewRedisFailureTracker(client)
	ctx := context.Background()

	for i := 0; i < LockoutThreshold-1; i++ {
		if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure() error: %v", err)
		}
	}

	locked, _, err := tracker.IsLocked(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("IsLocked() error: %v", err)
	}
	if locked {
		t.Errorf("expected unlocked after %d failures", LockoutThreshold-1)
	}

	if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure() error: %v", err)
	}

	locked, remaining, err := tracker.IsLocked(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("IsLocked() error: %v", err)
	}
	if !locked {
		t.Errorf("expected locked after %d failures", LockoutThreshold)
	}
	if remaining <= 0 || remaining > LockoutWindow {
		t.Errorf("expected remaining within (0, %v], got %v", LockoutWindow, remaining)
	}
}

func TestRedisFailureTracker_WindowSlides(t *testing.T) {
	_, client := newTestRedis(t)
	tracker := NewRedisFailureTracker(client)
	ctx := context.Background()

	current := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	for i := 0; i < LockoutThreshold; i++ {
		if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure() error: %v", err)
		}
		current = current.Add(time.Second)
	}

	if locked, _, _ := tracker.IsLocked(ctx, "user@example.com"); !locked {
		t.Fatal("expected locked at threshold")
	}

	// Old failures stop counting once they leave the window, even though
	// the entries are still stored.
	current = current.Add(LockoutWindow)
	locked, _, err := tracker.IsLocked(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("IsLocked() error: %v", err)
	}
	if locked {
		t.Error("expected unlocked after the window slid past all failures")
	}
}

func TestRedisFailureTracker_RemainingTracksOldestCounted(t *testing.T) {
	_, client := newTestRedis(t)
	tracker := NewRedisFailureTracker(client)
	ctx := context.Background()

	start := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	tracker.now = steppingClock(start, time.Minute)

	// Failures at t+0m .. t+4m; IsLocked reads the clock at t+5m. The
	// lock releases when the oldest counted failure (t+0m) ages out.
	for i := 0; i < LockoutThreshold; i++ {
		if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure() error: %v", err)
		}
	}

	locked, remaining, err := tracker.IsLocked(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("IsLocked() error: %v", err)
	}
	if !locked {
		t.Fatal("expected locked at threshold")
	}
	if want := LockoutWindow - 5*time.Minute; remaining != want {
		t.Errorf("remaining = %v, want %v", remaining, want)
	}
}

func TestRedisFailureTracker_HistoryCapped(t *testing.T) {
	_, client := newTestRedis(t)
	tracker := NewRedisFailureTracker(client)
	ctx := context.Background()

	tracker.now = steppingClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), time.Second)

	for i := 0; i < maxTrackedFailures+5; i++ {
		if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure() error: %v", err)
		}
	}

	stored, err := client.ZCard(ctx, failureKey("user@example.com")).Result()
	if err != nil {
		t.Fatalf("ZCard() error: %v", err)
	}
	if stored > maxTrackedFailures {
		t.Errorf("stored failures = %d, want at most %d", stored, maxTrackedFailures)
	}
}

func TestRedisFailureTracker_Reset(t *testing.T) {
	_, client := newTestRedis(t)
	tracker := NewRedisFailureTracker(client)
	ctx := context.Background()

	for i := 0; i < LockoutThreshold; i++ {
		if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure() error: %v", err)
		}
	}
	if locked, _, _ := tracker.IsLocked(ctx, "user@example.com"); !locked {
		t.Fatal("expected locked before reset")
	}

	if err := tracker.Reset(ctx, "user@example.com"); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if locked, _, _ := tracker.IsLocked(ctx, "user@example.com"); locked {
		t.Error("expected unlocked after reset")
	}
}

func TestRedisScheduleCache_SetGet(t *testing.T) {
	_, client := newTestRedis(t)
	sc := NewRedisScheduleCache(client)
	ctx := context.Background()

	if _, ok, err := sc.Get(ctx, "doc-1", "2026-02-01"); err != nil || ok {
		t.Fatalf("Get() before set = ok=%v err=%v, want miss", ok, err)
	}

	payload := []byte(`[{"id":"a"}]`)
	if err := sc.Set(ctx, "doc-1", "2026-02-01", payload); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	data, ok, err := sc.Get(ctx, "doc-1", "2026-02-01")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ok || !bytes.Equal(data, payload) {
		t.Errorf("Get() = ok=%v data=%s, want cached payload", ok, data)
	}
}

func TestRedisScheduleCache_InvalidateDropsAllDays(t *testing.T) {
	_, client := newTestRedis(t)
	sc := NewRedisScheduleCache(client)
	ctx := context.Background()

	for _, date := range []string{"2026-02-01", "2026-02-02"} {
		if err := sc.Set(ctx, "doc-1", date, []byte("[]")); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}
	if err := sc.Set(ctx, "doc-2", "2026-02-01", []byte("[]")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if err := sc.Invalidate(ctx, "doc-1"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}

	for _, date := range []string{"2026-02-01", "2026-02-02"} {
		if _, ok, _ := sc.Get(ctx, "doc-1", date); ok {
			t.Errorf("expected %s dropped for doc-1", date)
		}
	}
	if _, ok, _ := sc.Get(ctx, "doc-2", "2026-02-01"); !ok {
		t.Error("expected doc-2 entry untouched")
	}
	if n, _ := client.Exists(ctx, scheduleIndexKey("doc-1")).Result(); n != 0 {
		t.Error("expected doc-1 index set removed")
	}
}

func TestRedisScheduleCache_EntriesExpire(t *testing.T) {
	srv, client := newTestRedis(t)
	sc := NewRedisScheduleCache(client)
	ctx := context.Background()

	if err := sc.Set(ctx, "doc-1", "2026-02-01", []byte("[]")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	srv.FastForward(scheduleTTL + time.Second)

	if _, ok, err := sc.Get(ctx, "doc-1", "2026-02-01"); err != nil || ok {
		t.Errorf("Get() after TTL = ok=%v err=%v, want miss", ok, err)
	}
}
