package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctorDay(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]*Appointment, error)

	// Status transitions. Each applies a conditional update matching the
	// id and the legal source statuses, and returns ErrNotFound when the
	// row does not exist or ErrInvalidTransition when it exists in a
	// status the change does not allow.
	Confirm(ctx context.Context, id uuid.UUID, price *float64) error
	Start(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, notes, prescription *string) error
	Cancel(ctx context.Context, id uuid.UUID, reason string) error

	// ExpireStalePending cancels pending appointments whose start time is
	// already past. Returns the number of rows cancelled.
	ExpireStalePending(ctx context.Context, before time.Time) (int64, error)
}
