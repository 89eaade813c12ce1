package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type mockExpirer struct {
	mu    sync.Mutex
	calls int
	n     int64
	err   error
}

func (m *mockExpirer) ExpireStalePending(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.n, m.err
}

func TestRunnerStartStop(t *testing.T) {
	r := NewRunner(&mockExpirer{}, zerolog.Nop())
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	r.Stop()
}

func TestExpireStaleAppointments(t *testing.T) {
	exp := &mockExpirer{n: 3}
	r := NewRunner(exp, zerolog.Nop())

	r.expireStaleAppointments()

	exp.mu.Lock()
	defer exp.mu.Unlock()
	if exp.calls != 1 {
		t.Errorf("calls = %d, want 1", exp.calls)
	}
}

func TestExpireStaleAppointmentsError(t *testing.T) {
	exp := &mockExpirer{err: errors.New("db down")}
	r := NewRunner(exp, zerolog.Nop())

	// Errors are logged, never panic the scheduler.
	r.expireStaleAppointments()
}
