package db

import (
	"context"
	"errors"
	"testing"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(_ context.Context) error { return p.err }

func TestCacheStatus(t *testing.T) {
	ctx := context.Background()

	if got := cacheStatus(ctx, nil); got != "disabled" {
		t.Errorf("nil pinger: got %q, want disabled", got)
	}
	if got := cacheStatus(ctx, &stubPinger{}); got != "healthy" {
		t.Errorf("reachable cache: got %q, want healthy", got)
	}
	if got := cacheStatus(ctx, &stubPinger{err: errors.New("connection refused")}); got != "unhealthy" {
		t.Errorf("unreachable cache: got %q, want unhealthy", got)
	}
}

func TestPoolStats_HealthyFlag(t *testing.T) {
	healthy := &PoolStats{TotalConns: 4, MaxConns: 20, Healthy: true}
	if !healthy.Healthy {
		t.Error("expected Healthy true with open connections")
	}

	drained := &PoolStats{TotalConns: 0, MaxConns: 20, Healthy: false}
	if drained.Healthy {
		t.Error("expected Healthy false with no connections")
	}
}
