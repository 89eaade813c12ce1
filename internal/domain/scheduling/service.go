package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/cache"
)

// PaymentCreator is the slice of the billing service scheduling needs when
// a confirmation carries a price.
type PaymentCreator interface {
	CreateAppointmentPayment(ctx context.Context, patientID, appointmentID uuid.UUID, amount float64) error
}

// TxRunner runs fn with a database transaction bound to the context it
// passes in, so repository calls made inside fn share one transaction.
// db.WithTx has this shape.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	appointments AppointmentRepository
	payments     PaymentCreator
	schedules    cache.ScheduleCache
	tx           TxRunner
	log          zerolog.Logger
}

func NewService(appointments AppointmentRepository, payments PaymentCreator, schedules cache.ScheduleCache, tx TxRunner, log zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		payments:     payments,
		schedules:    schedules,
		tx:           tx,
		log:          log,
	}
}

// Book creates a pending appointment.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if a.StartTime.IsZero() {
		return fmt.Errorf("start_time is required")
	}
	if a.EndTime.IsZero() {
		a.EndTime = a.StartTime.Add(30 * time.Minute)
	}
	if !a.EndTime.After(a.StartTime) {
		return fmt.Errorf("end_time must be after start_time")
	}
	if a.Price != nil && *a.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}

	if err := s.appointments.Create(ctx, a); err != nil {
		return err
	}
	s.invalidateSchedule(ctx, a.DoctorID)
	return nil
}

// Confirm moves a pending appointment to confirmed. A price supplied here
// is stored on the appointment and billed as a pending payment. The status
// change and the payment commit or roll back together.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, price *float64) error {
	if price != nil && *price < 0 {
		return fmt.Errorf("price cannot be negative")
	}

	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.appointments.Confirm(ctx, id, price); err != nil {
			return err
		}
		if price != nil && *price > 0 {
			if err := s.payments.CreateAppointmentPayment(ctx, a.PatientID, id, *price); err != nil {
				return fmt.Errorf("create appointment payment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateSchedule(ctx, a.DoctorID)
	return nil
}

// Start moves a confirmed appointment to in_progress.
func (s *Service) Start(ctx context.Context, id uuid.UUID) error {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.appointments.Start(ctx, id); err != nil {
		return err
	}
	s.invalidateSchedule(ctx, a.DoctorID)
	return nil
}

// Complete closes out a confirmed or in-progress appointment, recording
// visit notes and any prescription.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, notes, prescription *string) error {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.appointments.Complete(ctx, id, notes, prescription); err != nil {
		return err
	}
	s.invalidateSchedule(ctx, a.DoctorID)
	return nil
}

// Cancel aborts a pending or confirmed appointment.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	if reason == "" {
		reason = "no reason given"
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.appointments.Cancel(ctx, id, reason); err != nil {
		return err
	}
	s.invalidateSchedule(ctx, a.DoctorID)
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateSchedule(ctx, a.DoctorID)
	return nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
}

// DoctorSchedule returns a doctor's non-cancelled appointments for one day,
// served from the cache when possible.
func (s *Service) DoctorSchedule(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]*Appointment, error) {
	date := day.Format("2006-01-02")

	if data, ok, err := s.schedules.Get(ctx, doctorID.String(), date); err == nil && ok {
		var items []*Appointment
		if err := json.Unmarshal(data, &items); err == nil {
			return items, nil
		}
		// A corrupt entry falls through to the database.
	} else if err != nil {
		s.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("schedule cache read failed")
	}

	items, err := s.appointments.ListByDoctorDay(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(items); err == nil {
		if err := s.schedules.Set(ctx, doctorID.String(), date, data); err != nil {
			s.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("schedule cache write failed")
		}
	}
	return items, nil
}

// ExpireStalePending cancels pending appointments whose start time passed.
// Called by the background scheduler.
func (s *Service) ExpireStalePending(ctx context.Context) (int64, error) {
	n, err := s.appointments.ExpireStalePending(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("cancelled", n).Msg("expired stale pending appointments")
	}
	return n, nil
}

// invalidateSchedule drops cached days for the doctor. Cache errors are not
// surfaced; the TTL bounds staleness.
func (s *Service) invalidateSchedule(ctx context.Context, doctorID uuid.UUID) {
	if err := s.schedules.Invalidate(ctx, doctorID.String()); err != nil {
		s.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("schedule cache invalidation failed")
	}
}
