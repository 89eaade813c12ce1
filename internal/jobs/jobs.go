// Package jobs runs the background maintenance schedule. For now that is
// a single hourly sweep that cancels pending appointments whose start
// time has already passed without a confirmation.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// AppointmentExpirer is the slice of the scheduling service the runner
// needs.
type AppointmentExpirer interface {
	ExpireStalePending(ctx context.Context) (int64, error)
}

const expireTimeout = 2 * time.Minute

type Runner struct {
	cron         *cron.Cron
	appointments AppointmentExpirer
	log          zerolog.Logger
}

func NewRunner(appointments AppointmentExpirer, log zerolog.Logger) *Runner {
	return &Runner{
		cron:         cron.New(),
		appointments: appointments,
		log:          log.With().Str("component", "jobs").Logger(),
	}
}

// Start registers the schedule and launches the cron loop.
func (r *Runner) Start() error {
	if _, err := r.cron.AddFunc("@hourly", r.expireStaleAppointments); err != nil {
		return err
	}
	r.cron.Start()
	r.log.Info().Msg("background jobs started")
	return nil
}

// Stop halts the schedule and waits for any running job to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info().Msg("background jobs stopped")
}

func (r *Runner) expireStaleAppointments() {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()

	n, err := r.appointments.ExpireStalePending(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("stale appointment sweep failed")
		return
	}
	if n > 0 {
		r.log.Info().Int64("cancelled", n).Msg("stale pending appointments cancelled")
	}
}
