package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryFailureTracker_LocksAtThreshold(t *testing.T) {
	tracker := NewMemoryFailureTracker()
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

func TestMemoryFailureTracker_WindowSlides(t *testing.T) {
	tracker := NewMemoryFailureTracker()
	ctx := context.Background()

	current := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	for i := 0; i < LockoutThreshold; i++ {
		if err := tracker.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure() error: %v", err)
		}
	}

	locked, _, _ := tracker.IsLocked(ctx, "user@example.com")
	if !locked {
		t.Fatal("expected locked at threshold")
	}

	// Advance past the window; the old failures no longer count.
	current = current.Add(LockoutWindow + time.Second)

	locked, _, _ = tracker.IsLocked(ctx, "user@example.com")
	if locked {
		t.Error("expected unlocked after window elapsed")
	}
}

func TestMemoryFailureTracker_Reset(t *testing.T) {
	tracker := NewMemoryFailureTracker()
	ctx := context.Background()

	for i := 0; i < LockoutThreshold; i++ {
		tracker.RecordFailure(ctx, "user@example.com")
	}

	if err := tracker.Reset(ctx, "user@example.com"); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}

	locked, _, _ := tracker.IsLocked(ctx, "user@example.com")
	if locked {
		t.Error("expected unlocked after reset")
	}
}

func TestMemoryFailureTracker_IsolatesAccounts(t *testing.T) {
	tracker := NewMemoryFailureTracker()
	ctx := context.Background()

	for i := 0; i < LockoutThreshold; i++ {
		tracker.RecordFailure(ctx, "locked@example.com")
	}

	locked, _, _ := tracker.IsLocked(ctx, "other@example.com")
	if locked {
		t.Error("failures on one account must not lock another")
	}
}

func TestMemoryFailureTracker_CapsHistory(t *testing.T) {
	tracker := NewMemoryFailureTracker()
	ctx := context.Background()

	for i := 0; i < maxTrackedFailures*2; i++ {
		tracker.RecordFailure(ctx, "user@example.com")
	}

	tracker.mu.Lock()
	stored := len(tracker.failures["user@example.com"])
	tracker.mu.Unlock()

	if stored > maxTrackedFailures {
		t.Errorf("expected at most %d stored failures, got %d", maxTrackedFailures, stored)
	}
}
